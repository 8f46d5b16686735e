// Package resolver turns package references into a deduplicated list of
// artifact paths on disk.
//
// A Resolver walks the dependency graph of each requested package breadth
// first, one wave per depth level, downloading every package at most once per
// process and reusing extracted packages across restarts through the
// pkgcache store. Dependencies that fail to resolve are either dropped as
// expected (platform packages the sandbox already provides) or reported as
// warnings; only the failure of a requested package fails its request.
//
// Usage:
//
//	r := resolver.New(logger, source, store, resolver.WithMaxDepth(10))
//	res := r.ResolveAll(ctx, []nuget.Identity{{Name: "Humanizer.Core", Version: "2.14.1"}})
//	if len(res.Errors) > 0 {
//	    // report res.Errors
//	}
package resolver
