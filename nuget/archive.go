package nuget

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// File permission constants for extracted package content
const (
	DirPermission  = 0o755
	FilePermission = 0o644
)

// FileWriter is the part of a filesystem needed to extract package content.
type FileWriter interface {
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
}

// Archive is a downloaded .nupkg opened in memory. Artifacts and the manifest
// are both read from the same download.
type Archive struct {
	reader         *zip.Reader
	manifest       *Manifest
	manifestBytes  []byte
	libFolderNames []string
}

// OpenArchive opens a .nupkg and parses its root manifest.
func OpenArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	// Insecure names are rejected per entry by ExtractLib.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("failed to open package archive: %w", err)
	}

	a := &Archive{reader: zr}
	folders := make(map[string]bool)
	for _, f := range zr.File {
		name := entryName(f.Name)
		switch {
		case !strings.Contains(name, "/") && strings.HasSuffix(strings.ToLower(name), ".nuspec"):
			raw, readErr := readEntry(f)
			if readErr != nil {
				return nil, fmt.Errorf("failed to read manifest %s: %w", name, readErr)
			}
			a.manifestBytes = raw
		case strings.HasPrefix(strings.ToLower(name), "lib/"):
			rest := name[len("lib/"):]
			if tag, _, ok := strings.Cut(rest, "/"); ok && tag != "" {
				folders[tag] = true
			}
		}
	}

	if a.manifestBytes == nil {
		return nil, fmt.Errorf("package archive has no .nuspec manifest")
	}
	m, err := ParseNuspec(bytes.NewReader(a.manifestBytes))
	if err != nil {
		return nil, err
	}
	a.manifest = m

	for tag := range folders {
		a.libFolderNames = append(a.libFolderNames, tag)
	}
	sort.Strings(a.libFolderNames)
	return a, nil
}

// Manifest returns the parsed manifest.
func (a *Archive) Manifest() *Manifest { return a.manifest }

// ManifestBytes returns the raw manifest so it can be persisted next to the
// extracted artifacts.
func (a *Archive) ManifestBytes() []byte { return a.manifestBytes }

// LibFolders returns the platform tags present under lib/.
func (a *Archive) LibFolders() []string {
	return append([]string(nil), a.libFolderNames...)
}

// ExtractLib writes every file under lib/<tag>/ into destDir/lib/<tag>/ and
// returns the written paths.
func (a *Archive) ExtractLib(fs FileWriter, tag, destDir string) ([]string, error) {
	prefix := strings.ToLower("lib/" + tag + "/")
	var written []string

	for _, f := range a.reader.File {
		name := entryName(f.Name)
		if !strings.HasPrefix(strings.ToLower(name), prefix) || strings.HasSuffix(name, "/") {
			continue
		}

		target, err := safeJoin(destDir, name)
		if err != nil {
			return written, err
		}
		if err := fs.MkdirAll(filepath.Dir(target), DirPermission); err != nil {
			return written, fmt.Errorf("failed to create parent directories: %w", err)
		}

		content, err := readEntry(f)
		if err != nil {
			return written, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := fs.WriteFile(target, content, FilePermission); err != nil {
			return written, fmt.Errorf("failed to write file: %w", err)
		}
		written = append(written, target)
	}
	return written, nil
}

// safeJoin rejects entry names that would escape destDir.
func safeJoin(destDir, name string) (string, error) {
	if path.IsAbs(name) || filepath.IsAbs(name) {
		return "", fmt.Errorf("absolute path not allowed in package: %s", name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, "/../") {
		return "", fmt.Errorf("unsafe relative path in package: %s", name)
	}

	target := filepath.Join(destDir, filepath.FromSlash(clean))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path in package: %s", name)
	}
	return target, nil
}

// entryName normalizes a zip entry name; nupkg entries may be percent-encoded.
func entryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
