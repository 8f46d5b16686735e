package nuget_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/scriptbox/nuget"
	"github.com/isdmx/scriptbox/nuget/nugettest"
)

func TestHTTPSource(t *testing.T) {
	pkg := nugettest.Package{
		ID:      "Sample.Lib",
		Version: "1.2.0",
		Groups:  []nugettest.Group{{Framework: "net8.0", Dependencies: map[string]string{"Dep.A": "2.0.0"}}},
		Files:   map[string]string{"lib/net8.0/Sample.Lib.dll": "dll"},
	}
	older := pkg
	older.Version = "1.0.0"

	srv, hits := nugettest.NewFeed(pkg, older)
	defer srv.Close()

	src, err := nuget.NewHTTPSource(zaptest.NewLogger(t), srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Versions", func(t *testing.T) {
		versions, err := src.Versions(ctx, "Sample.Lib")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"1.2.0", "1.0.0"}, versions)

		_, err = src.Versions(ctx, "SAMPLE.LIB")
		require.NoError(t, err)
		assert.Equal(t, 1, hits("/sample.lib/index.json"), "version index should be served from the LRU cache")
	})

	t.Run("Download", func(t *testing.T) {
		data, err := src.Download(ctx, pkg.Identity())
		require.NoError(t, err)

		a, err := nuget.OpenArchive(data)
		require.NoError(t, err)
		assert.Equal(t, []string{"net8.0"}, a.LibFolders())
	})

	t.Run("Manifest", func(t *testing.T) {
		before := hits("/sample.lib/1.2.0/sample.lib.1.2.0.nupkg")

		m, err := src.Manifest(ctx, pkg.Identity())
		require.NoError(t, err)
		assert.Equal(t, "Sample.Lib", m.ID)
		require.Len(t, m.Groups, 1)
		assert.Equal(t, 1, hits("/sample.lib/1.2.0/sample.lib.nuspec"))
		assert.Equal(t, before, hits("/sample.lib/1.2.0/sample.lib.1.2.0.nupkg"), "manifest fetch must not download binaries")
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := src.Download(ctx, nuget.Identity{Name: "Missing", Version: "1.0.0"})
		require.Error(t, err)
		assert.ErrorIs(t, err, nuget.ErrNotFound)
	})

	t.Run("SizeLimit", func(t *testing.T) {
		small, err := nuget.NewHTTPSource(zaptest.NewLogger(t), srv.URL, nuget.WithMaxPackageBytes(16))
		require.NoError(t, err)

		_, err = small.Download(ctx, pkg.Identity())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds size limit")
	})

	t.Run("EmptyURL", func(t *testing.T) {
		_, err := nuget.NewHTTPSource(zaptest.NewLogger(t), " ")
		require.Error(t, err)
	})
}

func TestHTTPSourceTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	src, err := nuget.NewHTTPSource(zaptest.NewLogger(t), srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = src.Download(ctx, nuget.Identity{Name: "Slow", Version: "1.0.0"})
	require.Error(t, err)
	assert.ErrorIs(t, err, nuget.ErrNetworkTimeout)
}

func TestHTTPSourceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src, err := nuget.NewHTTPSource(zaptest.NewLogger(t), srv.URL)
	require.NoError(t, err)

	_, err = src.Versions(context.Background(), "Any")
	require.Error(t, err)
	assert.Equal(t, nuget.KindOther, nuget.KindOf(err))
	assert.Contains(t, err.Error(), "502")
}
