// Package nuget models NuGet packages and the feeds they are fetched from.
//
// The nuget package holds the package identity used as a cache key across all
// layers, NuGet version range parsing, target framework tags and the rules for
// picking the best compatible lib folder, nuspec manifest parsing, and the
// Source implementations that talk to a v3 flat-container feed over HTTP or to
// a package mirror kept in an S3 bucket.
//
// Every failure returned by a Source is an *Error carrying a closed Kind, so
// callers classify failures with errors.Is instead of matching message text.
//
// Usage:
//
//	src, err := nuget.NewHTTPSource(logger, "https://api.nuget.org/v3-flatcontainer/")
//	data, err := src.Download(ctx, nuget.Identity{Name: "Newtonsoft.Json", Version: "13.0.3"})
//	archive, err := nuget.OpenArchive(data)
package nuget
