package nuget

import (
	"bytes"
	"context"
)

// Source is a package feed. Every returned error is an *Error.
type Source interface {
	// Versions lists the versions published for a package id.
	Versions(ctx context.Context, id string) ([]string, error)
	// Download returns the raw .nupkg for an identity.
	Download(ctx context.Context, id Identity) ([]byte, error)
	// Manifest returns only the package manifest, without the binaries.
	Manifest(ctx context.Context, id Identity) (*Manifest, error)
}

// Source kinds
const (
	SourceHTTP = "http"
	SourceS3   = "s3"
)

// DefaultFeedURL is the public NuGet v3 flat container.
const DefaultFeedURL = "https://api.nuget.org/v3-flatcontainer/"

// manifestFromArchive is the fallback for feeds that cannot serve a nuspec on
// its own.
func manifestFromArchive(id Identity, data []byte) (*Manifest, error) {
	a, err := OpenArchive(data)
	if err != nil {
		return nil, &Error{Kind: KindOther, Package: id, Message: "invalid package archive", Err: err}
	}
	return a.Manifest(), nil
}

func parseManifest(id Identity, data []byte) (*Manifest, error) {
	m, err := ParseNuspec(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Kind: KindOther, Package: id, Message: "invalid package manifest", Err: err}
	}
	return m, nil
}
