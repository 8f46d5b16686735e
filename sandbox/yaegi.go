package sandbox

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
)

// RefsPackage is the import path through which scripts read the artifact
// paths of their run.
const RefsPackage = "scriptbox/refs"

// Defaults for YaegiEvaluator
var (
	DefaultBaseImports     = config.DefaultBaseImports
	DefaultAllowedPackages = config.DefaultAllowedPackages
)

// YaegiEvaluator evaluates scripts with the yaegi Go interpreter.
type YaegiEvaluator struct {
	logger          *zap.Logger
	baseImports     []string
	allowedPackages map[string]bool
	symbols         interp.Exports
}

// YaegiOption defines a functional option for YaegiEvaluator
type YaegiOption func(*YaegiEvaluator)

// WithBaseImports sets the packages imported before every script
func WithBaseImports(imports []string) YaegiOption {
	return func(e *YaegiEvaluator) {
		if imports != nil {
			e.baseImports = imports
		}
	}
}

// WithAllowedPackages sets the standard library packages scripts may import
func WithAllowedPackages(pkgs []string) YaegiOption {
	return func(e *YaegiEvaluator) {
		if pkgs != nil {
			e.allowedPackages = toSet(pkgs)
		}
	}
}

// NewYaegiEvaluator creates an evaluator.
func NewYaegiEvaluator(logger *zap.Logger, opts ...YaegiOption) *YaegiEvaluator {
	e := &YaegiEvaluator{
		logger:          logger,
		baseImports:     DefaultBaseImports,
		allowedPackages: toSet(DefaultAllowedPackages),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.symbols = allowedSymbols(e.allowedPackages)
	return e
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// allowedSymbols keeps the stdlib exports whose import path is allowed.
// Export keys have the form "import/path/name".
func allowedSymbols(allowed map[string]bool) interp.Exports {
	out := make(interp.Exports)
	for key, syms := range stdlib.Symbols {
		path := key
		if i := strings.LastIndex(key, "/"); i > 0 {
			path = key[:i]
		}
		if allowed[path] {
			out[key] = syms
		}
	}
	return out
}

type runResult struct {
	outcome *Outcome
}

// Evaluate runs src under timeout. See the package documentation for the
// meaning of the returned values.
func (e *YaegiEvaluator) Evaluate(ctx context.Context, src string, artifacts []string, timeout time.Duration) (*Outcome, error) {
	start := time.Now()

	segments, diags := parseSegments(src)
	if len(diags) > 0 {
		return &Outcome{Kind: CompileError, Diagnostics: diags, Elapsed: time.Since(start)}, nil
	}

	stdout := &captureBuffer{}
	stderr := &captureBuffer{}
	i, err := e.newInterpreter(stdout, stderr, artifacts, segments)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runResult{outcome: &Outcome{
					Kind:    RuntimeError,
					Output:  stdout.String(),
					Runtime: describePanic(r),
				}}
			}
		}()
		done <- runResult{outcome: e.run(runCtx, i, src, segments, stdout, stderr)}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res runResult
	select {
	case res = <-done:
	case <-timer.C:
		res = runResult{outcome: &Outcome{Kind: Timeout}}
	case <-ctx.Done():
		res = runResult{outcome: &Outcome{Kind: Timeout}}
	}

	out := res.outcome
	out.Elapsed = time.Since(start)
	if out.Kind == Timeout {
		if ctx.Err() != nil {
			out.Cancelled = true
			out.Timeout = out.Elapsed.Round(time.Millisecond)
			e.logger.Warn("script execution cancelled; abandoning run", zap.Duration("elapsed", out.Elapsed), zap.Error(ctx.Err()))
		} else {
			out.Timeout = timeout
			e.logger.Warn("script execution timed out; abandoning run", zap.Duration("timeout", timeout))
		}
	}
	e.logger.Debug("script evaluated",
		zap.Stringer("outcome", out.Kind),
		zap.Duration("elapsed", out.Elapsed),
		zap.Int("artifacts", len(artifacts)))
	return out, nil
}

// run compiles and executes the segments in order.
func (e *YaegiEvaluator) run(ctx context.Context, i *interp.Interpreter, src string, segments []parsedSegment, stdout, stderr *captureBuffer) *Outcome {
	var last reflect.Value
	for _, seg := range segments {
		prog, err := i.Compile(seg.body(src))
		if err != nil {
			return &Outcome{Kind: CompileError, Diagnostics: compileDiagnostics(src, err)}
		}

		last, err = i.ExecuteWithContext(ctx, prog)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return &Outcome{Kind: Timeout}
			}
			return &Outcome{
				Kind:    RuntimeError,
				Output:  stdout.String(),
				Runtime: runtimeFailure(err, stderr.String()),
			}
		}
	}

	out := &Outcome{Kind: Success, Output: stdout.String()}
	if n := len(segments); n > 0 && segments[n-1].yieldsValue() {
		out.ReturnValue = formatValue(last)
	}
	return out
}

// formatValue renders a result value, or returns nil when there is none.
func formatValue(v reflect.Value) *string {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	s := fmt.Sprint(v.Interface())
	return &s
}

// newInterpreter prepares a fresh interpreter: allowed stdlib symbols, the
// refs package, base imports not already imported by the script and the
// source artifacts.
func (e *YaegiEvaluator) newInterpreter(stdout, stderr *captureBuffer, artifacts []string, segments []parsedSegment) (*interp.Interpreter, error) {
	i := interp.New(interp.Options{
		Stdout: stdout,
		Stderr: stderr,
	})
	if err := i.Use(e.symbols); err != nil {
		return nil, &InitError{Err: err}
	}

	paths := append([]string(nil), artifacts...)
	refs := interp.Exports{
		RefsPackage + "/refs": {
			"Paths": reflect.ValueOf(func() []string { return append([]string(nil), paths...) }),
		},
	}
	if err := i.Use(refs); err != nil {
		return nil, &InitError{Err: err}
	}

	imported := make(map[string]bool)
	for _, seg := range segments {
		for _, path := range seg.imports() {
			imported[path] = true
		}
	}
	for _, path := range e.baseImports {
		if imported[path] || !e.allowedPackages[path] {
			continue
		}
		if _, err := i.Eval(fmt.Sprintf("import %q", path)); err != nil {
			return nil, &InitError{Err: fmt.Errorf("import %s: %w", path, err)}
		}
	}

	for _, artifact := range artifacts {
		if !strings.EqualFold(filepath.Ext(artifact), ".go") {
			continue
		}
		if err := loadSourceArtifact(i, artifact); err != nil {
			return nil, &InitError{Artifact: artifact, Err: err}
		}
		e.logger.Debug("loaded source artifact", zap.String("artifact", artifact))
	}
	return i, nil
}

// loadSourceArtifact evaluates a package main source file into the session.
func loadSourceArtifact(i *interp.Interpreter, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := parser.ParseFile(token.NewFileSet(), path, data, parser.PackageClauseOnly)
	if err != nil {
		return err
	}
	if f.Name.Name != "main" {
		return fmt.Errorf("package %s, want main", f.Name.Name)
	}
	_, err = i.Eval(string(data))
	return err
}
