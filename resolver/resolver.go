package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/nuget"
	"github.com/isdmx/scriptbox/pkgcache"
)

// Defaults for Resolver
const (
	DefaultMaxDepth       = 10
	DefaultConcurrency    = 4
	DefaultNetworkTimeout = 30 * time.Second
)

// DefaultArtifactExtensions are the lib files handed to the sandbox.
var DefaultArtifactExtensions = config.DefaultArtifactExtensions

// Result is the outcome of resolving one requested package.
type Result struct {
	// Identity is the requested identity with floating versions made concrete.
	Identity  nuget.Identity
	Artifacts []string
	// Warnings are unexpected failures of transitive dependencies.
	Warnings []*nuget.Error
}

// Resolution is the outcome of resolving every package of a request.
type Resolution struct {
	Artifacts []string
	Errors    []*ResolutionError
	Warnings  []*nuget.Error
}

// Resolver resolves packages against a source, caching them in a store.
// It is safe for concurrent use.
type Resolver struct {
	source         nuget.Source
	store          *pkgcache.Store
	logger         *zap.Logger
	policy         Policy
	selector       nuget.FrameworkSelector
	maxDepth       int
	concurrency    int
	networkTimeout time.Duration
	extensions     []string

	downloads singleflight.Group
}

// Option defines a functional option for Resolver
type Option func(*Resolver)

// WithPolicy sets the dependency policy
func WithPolicy(p Policy) Option {
	return func(r *Resolver) {
		r.policy = p
	}
}

// WithSelector sets the target platform selector
func WithSelector(s nuget.FrameworkSelector) Option {
	return func(r *Resolver) {
		r.selector = s
	}
}

// WithMaxDepth sets the depth at which dependencies stop being followed
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithConcurrency bounds the packages resolved in parallel within one wave
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithNetworkTimeout bounds every single network operation
func WithNetworkTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.networkTimeout = d
		}
	}
}

// WithArtifactExtensions sets which lib files are returned as artifacts
func WithArtifactExtensions(exts []string) Option {
	return func(r *Resolver) {
		if len(exts) > 0 {
			r.extensions = exts
		}
	}
}

// New creates a resolver.
func New(logger *zap.Logger, source nuget.Source, store *pkgcache.Store, opts ...Option) *Resolver {
	r := &Resolver{
		source:         source,
		store:          store,
		logger:         logger,
		policy:         DefaultPolicy(),
		selector:       nuget.DefaultSelector(),
		maxDepth:       DefaultMaxDepth,
		concurrency:    DefaultConcurrency,
		networkTimeout: DefaultNetworkTimeout,
		extensions:     DefaultArtifactExtensions,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromConfig creates a resolver from the resolver section.
func NewFromConfig(logger *zap.Logger, cfg *config.Config, source nuget.Source, store *pkgcache.Store) *Resolver {
	rc := cfg.Resolver
	return New(logger.Named("resolver"), source, store,
		WithPolicy(PolicyFromConfig(rc.Policy)),
		WithSelector(nuget.FrameworkSelector{Target: rc.TargetFramework, Fallbacks: rc.FallbackFrameworks}),
		WithMaxDepth(rc.MaxDepth),
		WithConcurrency(rc.Concurrency),
		WithNetworkTimeout(cfg.GetNetworkTimeout()),
		WithArtifactExtensions(rc.ArtifactExtensions),
	)
}

// ResolveAll resolves requested packages in order and aggregates their
// artifacts, errors and warnings. It never stops at the first error.
func (r *Resolver) ResolveAll(ctx context.Context, ids []nuget.Identity) Resolution {
	var res Resolution
	for _, id := range ids {
		one, err := r.Resolve(ctx, id)
		if err != nil {
			var rerr *ResolutionError
			if !errors.As(err, &rerr) {
				rerr = newResolutionError(id, err)
			}
			res.Errors = append(res.Errors, rerr)
			continue
		}
		res.Artifacts = append(res.Artifacts, one.Artifacts...)
		res.Warnings = append(res.Warnings, one.Warnings...)
	}
	res.Artifacts = Dedupe(res.Artifacts)
	return res
}

type workItem struct {
	id    nuget.Identity
	depth int
}

type nodeResult struct {
	id        nuget.Identity
	artifacts []string
	deps      []nuget.Identity
	err       error
}

// Resolve resolves a package and its dependency graph. The returned error is
// a *ResolutionError and only reports failures of the requested package.
func (r *Resolver) Resolve(ctx context.Context, requested nuget.Identity) (*Result, error) {
	log := r.logger.With(zap.String("package", requested.Name), zap.String("version", requested.Version))

	result := &Result{Identity: requested}
	visited := map[string]bool{strings.ToLower(requested.Key()): true}
	wave := []workItem{{id: requested}}

	for len(wave) > 0 {
		nodes := r.resolveWave(ctx, wave)

		var next []workItem
		for i, node := range nodes {
			item := wave[i]
			if node.err != nil {
				if item.depth == 0 {
					log.Debug("package resolution failed", zap.Error(node.err))
					return nil, newResolutionError(requested, node.err)
				}
				r.recordFailure(log, result, item, node.err)
				continue
			}
			if item.depth == 0 {
				result.Identity = node.id
			}
			result.Artifacts = append(result.Artifacts, node.artifacts...)

			if item.depth >= r.maxDepth {
				if len(node.deps) > 0 {
					log.Debug("maximum dependency depth reached",
						zap.String("dependency", node.id.Key()), zap.Int("depth", item.depth))
				}
				continue
			}
			for _, dep := range node.deps {
				key := strings.ToLower(dep.Key())
				if visited[key] {
					continue
				}
				visited[key] = true
				next = append(next, workItem{id: dep, depth: item.depth + 1})
			}
		}
		wave = next
	}

	result.Artifacts = Dedupe(result.Artifacts)
	log.Info("package resolved",
		zap.String("resolved_version", result.Identity.Version),
		zap.Int("artifacts", len(result.Artifacts)),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

func (r *Resolver) recordFailure(log *zap.Logger, result *Result, item workItem, err error) {
	if r.policy.Classify(item.id.Name, err) {
		log.Debug("skipping unavailable platform dependency",
			zap.String("dependency", item.id.Key()), zap.Int("depth", item.depth), zap.Error(err))
		return
	}
	log.Warn("dependency resolution failed",
		zap.String("dependency", item.id.Key()), zap.Int("depth", item.depth), zap.Error(err))
	result.Warnings = append(result.Warnings, nuget.AsError(item.id, err))
}

// resolveWave resolves every item of one depth level. Failures are recorded
// per node so that siblings keep going.
func (r *Resolver) resolveWave(ctx context.Context, wave []workItem) []nodeResult {
	nodes := make([]nodeResult, len(wave))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, item := range wave {
		g.Go(func() error {
			nodes[i] = r.resolveNode(ctx, item.id)
			return nil
		})
	}
	_ = g.Wait()
	return nodes
}

func (r *Resolver) resolveNode(ctx context.Context, id nuget.Identity) nodeResult {
	if err := ctx.Err(); err != nil {
		return nodeResult{id: id, err: err}
	}
	if err := id.Validate(); err != nil {
		return nodeResult{id: id, err: &nuget.Error{Kind: nuget.KindOther, Package: id, Message: "invalid package identity", Err: err}}
	}

	if id.IsFloating() {
		concrete, err := r.latest(ctx, id.Name)
		if err != nil {
			return nodeResult{id: id, err: err}
		}
		id = concrete
	}

	switch {
	case r.store.IsResolved(id):
		r.logger.Debug("session cache hit", zap.String("package", id.Key()))
	case r.store.Exists(id):
		r.logger.Debug("disk cache hit", zap.String("package", id.Key()))
		r.store.MarkResolved(id)
	default:
		if err := r.fetch(ctx, id); err != nil {
			return nodeResult{id: id, err: err}
		}
	}

	deps, err := r.dependencies(ctx, id)
	if err != nil {
		return nodeResult{id: id, err: err}
	}
	artifacts, err := r.store.Artifacts(id, r.extensions)
	if err != nil {
		return nodeResult{id: id, err: nuget.AsError(id, err)}
	}
	return nodeResult{id: id, artifacts: artifacts, deps: deps}
}

// fetch downloads a package once, however many resolutions ask for it
// concurrently, and persists it. The shared download ignores cancellation of
// the caller that started it and is bounded by the network timeout.
func (r *Resolver) fetch(ctx context.Context, id nuget.Identity) error {
	ch := r.downloads.DoChan(strings.ToLower(id.Key()), func() (any, error) {
		if r.store.IsResolved(id) {
			return nil, nil
		}
		return nil, r.download(context.WithoutCancel(ctx), id)
	})

	select {
	case res := <-ch:
		if res.Shared {
			r.logger.Debug("joined in-flight download", zap.String("package", id.Key()))
		}
		return res.Err
	case <-ctx.Done():
		return nuget.AsError(id, ctx.Err())
	}
}

func (r *Resolver) download(ctx context.Context, id nuget.Identity) error {
	dctx, cancel := context.WithTimeout(ctx, r.networkTimeout)
	defer cancel()

	start := time.Now()
	data, err := r.source.Download(dctx, id)
	if err != nil {
		return nuget.AsError(id, err)
	}

	archive, err := nuget.OpenArchive(data)
	if err != nil {
		return &nuget.Error{Kind: nuget.KindOther, Package: id, Message: "invalid package archive", Err: err}
	}

	tag := ""
	if folders := archive.LibFolders(); len(folders) > 0 {
		best, ok := r.selector.Best(folders)
		if !ok {
			return nuget.NewError(nuget.KindIncompatiblePlatform, id,
				"no compatible lib folder for %s (available: %s)", strings.Join(r.selector.Candidates(), ", "), strings.Join(folders, ", "))
		}
		tag = best
	}

	r.store.StoreDependencies(id, r.filter(archive.Manifest()))
	if err := r.store.Persist(id, archive, tag); err != nil {
		return &nuget.Error{Kind: nuget.KindOther, Package: id, Message: "failed to cache package", Err: err}
	}
	r.store.MarkResolved(id)

	r.logger.Info("package downloaded",
		zap.String("package", id.Key()),
		zap.String("lib", tag),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// dependencies returns the filtered dependencies of a cached package from the
// session map, the stored manifest, or a manifest-only fetch, in that order.
func (r *Resolver) dependencies(ctx context.Context, id nuget.Identity) ([]nuget.Identity, error) {
	if deps, ok := r.store.Dependencies(id); ok {
		return deps, nil
	}

	m, err := r.store.ReadManifest(id)
	if err != nil {
		if !errors.Is(err, pkgcache.ErrNoManifest) {
			r.logger.Warn("failed to read stored manifest", zap.String("package", id.Key()), zap.Error(err))
		}
		mctx, cancel := context.WithTimeout(ctx, r.networkTimeout)
		defer cancel()
		m, err = r.source.Manifest(mctx, id)
		if err != nil {
			return nil, nuget.AsError(id, err)
		}
	}

	deps := r.filter(m)
	r.store.StoreDependencies(id, deps)
	return deps, nil
}

func (r *Resolver) filter(m *nuget.Manifest) []nuget.Identity {
	var out []nuget.Identity
	for _, dep := range m.DependenciesFor(r.selector) {
		if !r.policy.ShouldResolve(dep.ID) {
			r.logger.Debug("dependency provided by the sandbox", zap.String("dependency", dep.ID))
			continue
		}
		out = append(out, nuget.Identity{Name: dep.ID, Version: r.policy.BestVersion(dep)})
	}
	return out
}

// latest resolves a floating version against the source's version index.
func (r *Resolver) latest(ctx context.Context, name string) (nuget.Identity, error) {
	vctx, cancel := context.WithTimeout(ctx, r.networkTimeout)
	defer cancel()

	versions, err := r.source.Versions(vctx, name)
	if err != nil {
		return nuget.Identity{}, nuget.AsError(nuget.Identity{Name: name, Version: nuget.LatestVersion}, err)
	}
	v, ok := nuget.LatestStable(versions)
	if !ok {
		return nuget.Identity{}, nuget.NewError(nuget.KindNotFound, nuget.Identity{Name: name, Version: nuget.LatestVersion}, "no published versions")
	}
	return nuget.Identity{Name: name, Version: v}, nil
}
