package nuget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Defaults for HTTPSource
const (
	DefaultIndexCacheSize  = 256
	DefaultMaxPackageBytes = 200 * 1024 * 1024
)

// HTTPSource reads packages from a NuGet v3 flat container:
//
//	{base}/{id}/index.json
//	{base}/{id}/{version}/{id}.{version}.nupkg
//	{base}/{id}/{version}/{id}.nuspec
type HTTPSource struct {
	baseURL         string
	client          *http.Client
	logger          *zap.Logger
	maxPackageBytes int64
	indexCacheSize  int
	versions        *lru.Cache[string, []string]
}

// HTTPSourceOption defines a functional option for HTTPSource
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient sets the http.Client used for feed requests
func WithHTTPClient(client *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithMaxPackageBytes caps the size of a downloaded package
func WithMaxPackageBytes(n int64) HTTPSourceOption {
	return func(s *HTTPSource) {
		if n > 0 {
			s.maxPackageBytes = n
		}
	}
}

// WithIndexCacheSize sets how many version indexes are kept in memory
func WithIndexCacheSize(n int) HTTPSourceOption {
	return func(s *HTTPSource) {
		if n > 0 {
			s.indexCacheSize = n
		}
	}
}

// NewHTTPSource creates a flat-container source rooted at baseURL.
func NewHTTPSource(logger *zap.Logger, baseURL string, opts ...HTTPSourceOption) (*HTTPSource, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	s := &HTTPSource{
		baseURL:         baseURL,
		client:          http.DefaultClient,
		logger:          logger,
		maxPackageBytes: DefaultMaxPackageBytes,
		indexCacheSize:  DefaultIndexCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := lru.New[string, []string](s.indexCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create version index cache: %w", err)
	}
	s.versions = cache
	return s, nil
}

// Versions returns the published versions of a package.
func (s *HTTPSource) Versions(ctx context.Context, id string) ([]string, error) {
	key := strings.ToLower(id)
	if cached, ok := s.versions.Get(key); ok {
		return cached, nil
	}

	pkg := Identity{Name: id}
	body, err := s.get(ctx, pkg, s.baseURL+key+"/index.json", 0)
	if err != nil {
		return nil, err
	}

	var index struct {
		Versions []string `json:"versions"`
	}
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, &Error{Kind: KindOther, Package: pkg, Message: "invalid version index", Err: err}
	}
	s.versions.Add(key, index.Versions)
	return index.Versions, nil
}

// Download fetches the .nupkg for id.
func (s *HTTPSource) Download(ctx context.Context, id Identity) ([]byte, error) {
	name, version := id.lower()
	url := fmt.Sprintf("%s%s/%s/%s.%s.nupkg", s.baseURL, name, version, name, version)
	s.logger.Debug("downloading package", zap.String("package", id.Name), zap.String("version", id.Version), zap.String("url", url))
	return s.get(ctx, id, url, s.maxPackageBytes)
}

// Manifest fetches only the .nuspec for id.
func (s *HTTPSource) Manifest(ctx context.Context, id Identity) (*Manifest, error) {
	name, version := id.lower()
	body, err := s.get(ctx, id, fmt.Sprintf("%s%s/%s/%s.nuspec", s.baseURL, name, version, name), 0)
	if err != nil {
		return nil, err
	}
	return parseManifest(id, body)
}

func (s *HTTPSource) get(ctx context.Context, id Identity, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &Error{Kind: KindOther, Package: id, Message: "invalid feed request", Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, wrapTransport(id, "feed request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewError(KindNotFound, id, "package not found at %s", s.baseURL)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, NewError(KindOther, id, "feed returned %s", resp.Status)
	}

	var reader io.Reader = resp.Body
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, wrapTransport(id, "feed read", context.DeadlineExceeded)
		}
		return nil, wrapTransport(id, "feed read", err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, NewError(KindOther, id, "package exceeds size limit of %d bytes", limit)
	}
	return body, nil
}
