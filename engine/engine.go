package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/directive"
	"github.com/isdmx/scriptbox/nuget"
	"github.com/isdmx/scriptbox/report"
	"github.com/isdmx/scriptbox/resolver"
	"github.com/isdmx/scriptbox/sandbox"
)

// Request validation messages
const (
	MissingInput   = "Error: Either file_path or code parameter must be provided."
	AmbiguousInput = "Error: Only one of file_path or code parameter should be provided, not both."
	fileNotFound   = "Error: File not found: %s"
	accessDenied   = "Error: Access denied: %s is outside the allowed directory %s"
	fileUnreadable = "Error: Unable to read file %s: %v"
)

// DefaultTimeout applies to requests without a timeout.
const DefaultTimeout = 30 * time.Second

const maxTimeout = 24 * time.Hour

// Request is one script evaluation request. Exactly one of Code and FilePath
// must be set.
type Request struct {
	Code     string
	FilePath string
	// TimeoutSeconds falls back to the engine default when not positive.
	TimeoutSeconds int
}

// Response is the rendered outcome of a request.
type Response struct {
	Text string
	// Failed is set for every outcome except a successful evaluation.
	Failed bool
}

// PackageResolver resolves package references into artifacts.
type PackageResolver interface {
	ResolveAll(ctx context.Context, ids []nuget.Identity) resolver.Resolution
}

// Engine runs script requests.
type Engine struct {
	resolver       PackageResolver
	evaluator      sandbox.Evaluator
	logger         *zap.Logger
	defaultTimeout time.Duration
	allowedRoot    string
}

// Option defines a functional option for Engine
type Option func(*Engine)

// WithDefaultTimeout sets the evaluation timeout used when a request has none
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithAllowedRoot restricts file requests to paths below root
func WithAllowedRoot(root string) Option {
	return func(e *Engine) {
		e.allowedRoot = root
	}
}

// New creates an engine.
func New(logger *zap.Logger, r PackageResolver, ev sandbox.Evaluator, opts ...Option) *Engine {
	e := &Engine{
		resolver:       r,
		evaluator:      ev,
		logger:         logger,
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig creates an engine using the sandbox settings of cfg.
func NewFromConfig(logger *zap.Logger, cfg *config.Config, r *resolver.Resolver, ev sandbox.Evaluator) *Engine {
	return New(logger.Named("engine"), r, ev,
		WithDefaultTimeout(cfg.GetTimeout()),
		WithAllowedRoot(cfg.Sandbox.AllowedRoot),
	)
}

// Run evaluates a request and renders its outcome.
func (e *Engine) Run(ctx context.Context, req Request) Response {
	log := e.logger.With(zap.String("request_id", uuid.NewString()))
	start := time.Now()

	code, failure := e.source(req)
	if failure != "" {
		log.Info("request rejected", zap.String("reason", failure))
		return Response{Text: failure, Failed: true}
	}

	resp := e.run(ctx, log, code, e.timeout(req.TimeoutSeconds))
	log.Info("request completed",
		zap.Bool("failed", resp.Failed),
		zap.Duration("duration", time.Since(start)))
	return resp
}

func (e *Engine) run(ctx context.Context, log *zap.Logger, code string, timeout time.Duration) Response {
	parsed := directive.Parse(code)
	if len(parsed.Errors) > 0 {
		errs := make([]*resolver.ResolutionError, 0, len(parsed.Errors))
		for _, m := range parsed.Errors {
			errs = append(errs, &resolver.ResolutionError{
				Message: m.Error(),
				Kind:    nuget.KindMalformedDirective,
				Err:     m,
			})
		}
		log.Info("malformed package directives", zap.Int("errors", len(errs)))
		return Response{Text: report.Resolution(errs), Failed: true}
	}

	var res resolver.Resolution
	if len(parsed.Directives) > 0 {
		ids := make([]nuget.Identity, 0, len(parsed.Directives))
		for _, d := range parsed.Directives {
			ids = append(ids, nuget.Identity{Name: d.Name, Version: d.Version})
		}
		log.Debug("resolving packages", zap.Int("packages", len(ids)))
		res = e.resolver.ResolveAll(ctx, ids)
		for _, w := range res.Warnings {
			log.Warn("dependency not resolved",
				zap.String("package", w.Package.Name),
				zap.String("version", w.Package.Version),
				zap.Stringer("kind", w.Kind),
				zap.Error(w))
		}
	}

	if len(res.Errors) > 0 {
		log.Info("package resolution failed", zap.Int("errors", len(res.Errors)))
		return Response{Text: report.Resolution(res.Errors), Failed: true}
	}

	outcome, err := e.evaluator.Evaluate(ctx, directive.Strip(code), res.Artifacts, timeout)
	if err != nil {
		log.Error("failed to initialize evaluation", zap.Error(err))
		return Response{
			Text: report.Resolution([]*resolver.ResolutionError{{
				Message: err.Error(),
				Kind:    nuget.KindInitializationFailure,
				Err:     err,
			}}),
			Failed: true,
		}
	}

	log.Debug("script evaluated", zap.Stringer("outcome", outcome.Kind), zap.Duration("elapsed", outcome.Elapsed))
	return Response{Text: report.Outcome(outcome), Failed: outcome.Kind != sandbox.Success}
}

// source validates the request and returns the script text, or the
// message rejecting the request.
func (e *Engine) source(req Request) (string, string) {
	hasCode := strings.TrimSpace(req.Code) != ""
	hasFile := strings.TrimSpace(req.FilePath) != ""
	switch {
	case !hasCode && !hasFile:
		return "", MissingInput
	case hasCode && hasFile:
		return "", AmbiguousInput
	case hasCode:
		return req.Code, ""
	}

	path, err := filepath.Abs(req.FilePath)
	if err != nil {
		return "", fmt.Sprintf(fileNotFound, req.FilePath)
	}
	if e.allowedRoot != "" && !within(e.allowedRoot, path) {
		return "", fmt.Sprintf(accessDenied, req.FilePath, e.allowedRoot)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Sprintf(fileNotFound, req.FilePath)
		}
		return "", fmt.Sprintf(fileUnreadable, req.FilePath, err)
	}
	return string(data), ""
}

// within reports whether path lies inside root, after resolving symlinks
// where possible.
func within(root, path string) bool {
	root, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (e *Engine) timeout(seconds int) time.Duration {
	if seconds <= 0 {
		return e.defaultTimeout
	}
	d := time.Duration(seconds) * time.Second
	if d > maxTimeout {
		return maxTimeout
	}
	return d
}
