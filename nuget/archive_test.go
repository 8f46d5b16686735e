package nuget_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/scriptbox/nuget"
	"github.com/isdmx/scriptbox/nuget/nugettest"
)

type osWriter struct{}

func (osWriter) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (osWriter) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func TestArchive(t *testing.T) {
	pkg := nugettest.Package{
		ID:      "Sample.Lib",
		Version: "1.0.0",
		Groups:  []nugettest.Group{{Framework: ".NETStandard2.0", Dependencies: map[string]string{"Dep.A": "1.0.0"}}},
		Files: map[string]string{
			"lib/netstandard2.0/Sample.Lib.dll": "dll",
			"lib/netstandard2.0/Sample.Lib.xml": "docs",
			"lib/net462/Sample.Lib.dll":         "legacy",
			"content/readme.txt":                "ignored",
		},
	}

	a, err := nuget.OpenArchive(pkg.Bytes())
	require.NoError(t, err)

	t.Run("Manifest", func(t *testing.T) {
		assert.Equal(t, "Sample.Lib", a.Manifest().ID)
		assert.Contains(t, string(a.ManifestBytes()), "<id>Sample.Lib</id>")
	})

	t.Run("LibFolders", func(t *testing.T) {
		assert.Equal(t, []string{"net462", "netstandard2.0"}, a.LibFolders())
	})

	t.Run("ExtractLib", func(t *testing.T) {
		dest := t.TempDir()
		written, err := a.ExtractLib(osWriter{}, "netstandard2.0", dest)
		require.NoError(t, err)
		assert.Len(t, written, 2)

		data, err := os.ReadFile(filepath.Join(dest, "lib", "netstandard2.0", "Sample.Lib.dll"))
		require.NoError(t, err)
		assert.Equal(t, "dll", string(data))
		assert.NoFileExists(t, filepath.Join(dest, "lib", "net462", "Sample.Lib.dll"))
		assert.NoFileExists(t, filepath.Join(dest, "content", "readme.txt"))
	})

	t.Run("NotAZip", func(t *testing.T) {
		_, err := nuget.OpenArchive([]byte("not a zip"))
		require.Error(t, err)
	})

	t.Run("NoManifest", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, err := zw.Create("lib/net8.0/A.dll")
		require.NoError(t, err)
		_, _ = w.Write([]byte("x"))
		require.NoError(t, zw.Close())

		_, err = nuget.OpenArchive(buf.Bytes())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no .nuspec manifest")
	})
}

func TestArchiveRejectsTraversal(t *testing.T) {
	pkg := nugettest.Package{
		ID:      "Evil",
		Version: "1.0.0",
		Files: map[string]string{
			"lib/net8.0/../../../escape.dll": "x",
		},
	}

	a, err := nuget.OpenArchive(pkg.Bytes())
	require.NoError(t, err)

	dest := t.TempDir()
	_, err = a.ExtractLib(osWriter{}, "net8.0", dest)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "escape.dll"))
}
