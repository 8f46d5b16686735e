package pkgcache

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/nuget"
)

// ErrNoManifest is returned by ReadManifest when a cached package has no
// stored manifest.
var ErrNoManifest = errors.New("no stored manifest")

const tempPrefix = ".tmp-"

// Store is the artifact cache. It is safe for concurrent use.
type Store struct {
	root   string
	fs     FileSystem
	logger *zap.Logger

	mu       sync.RWMutex
	resolved map[string]nuget.Identity
	deps     map[string][]nuget.Identity
}

// StoreOption defines a functional option for Store
type StoreOption func(*Store)

// WithFileSystem sets the FileSystem for Store
func WithFileSystem(fs FileSystem) StoreOption {
	return func(s *Store) {
		s.fs = fs
	}
}

// NewStore creates a store rooted at root, creating the directory if needed.
func NewStore(logger *zap.Logger, root string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		root:     filepath.Clean(root),
		fs:       OSFileSystem{},
		logger:   logger,
		resolved: make(map[string]nuget.Identity),
		deps:     make(map[string][]nuget.Identity),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.fs.MkdirAll(s.root, nuget.DirPermission); err != nil {
		return nil, fmt.Errorf("failed to create package cache %s: %w", s.root, err)
	}
	return s, nil
}

// NewStoreFromConfig creates the store under resolver.temp_root (or the
// system temp directory) named resolver.cache_dir_name.
func NewStoreFromConfig(logger *zap.Logger, cfg *config.Config) (*Store, error) {
	base := cfg.Resolver.TempRoot
	if base == "" {
		base = os.TempDir()
	}
	return NewStore(logger, filepath.Join(base, cfg.Resolver.CacheDirName))
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// PackageDir returns the directory holding the extracted package.
func (s *Store) PackageDir(id nuget.Identity) string {
	return filepath.Join(s.root, id.DirName())
}

// dir returns PackageDir for identities that stay inside the root.
func (s *Store) dir(id nuget.Identity) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	return s.PackageDir(id), nil
}

// Exists reports whether the package directory is present on disk.
func (s *Store) Exists(id nuget.Identity) bool {
	dir, err := s.dir(id)
	if err != nil {
		return false
	}
	ok, err := s.fs.FileExists(dir)
	if err != nil {
		s.logger.Warn("failed to stat package directory", zap.String("package", id.Key()), zap.Error(err))
		return false
	}
	return ok
}

// Artifacts lists the extracted lib files of a package whose extension is in
// extensions (case-insensitive). An empty list of extensions matches every
// file. Paths are returned sorted.
func (s *Store) Artifacts(id nuget.Identity, extensions []string) ([]string, error) {
	dir, err := s.dir(id)
	if err != nil {
		return nil, err
	}
	files, err := s.fs.ListFiles(filepath.Join(dir, "lib"))
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts of %s: %w", id, err)
	}

	var out []string
	for _, f := range files {
		if matchesExtension(f, extensions) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out, nil
}

func matchesExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Persist extracts the lib/<tag> folder of a downloaded package together with
// its manifest. An empty tag persists the manifest only. Content is staged in
// a temporary directory and moved into place; when another resolution moved
// the same identity first, its copy is kept.
func (s *Store) Persist(id nuget.Identity, archive *nuget.Archive, tag string) error {
	dest, err := s.dir(id)
	if err != nil {
		return err
	}
	tmp, err := s.fs.MkdirTemp(s.root, tempPrefix+id.DirName()+"-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	if tag != "" {
		if _, err := archive.ExtractLib(s.fs, tag, tmp); err != nil {
			_ = s.fs.RemoveAll(tmp)
			return fmt.Errorf("failed to extract %s: %w", id, err)
		}
	}
	if err := s.fs.WriteFile(filepath.Join(tmp, manifestName(id)), archive.ManifestBytes(), nuget.FilePermission); err != nil {
		_ = s.fs.RemoveAll(tmp)
		return fmt.Errorf("failed to write manifest of %s: %w", id, err)
	}

	if err := s.fs.Rename(tmp, dest); err != nil {
		_ = s.fs.RemoveAll(tmp)
		if exists, _ := s.fs.FileExists(dest); exists {
			s.logger.Debug("package persisted concurrently", zap.String("package", id.Key()))
			return nil
		}
		return fmt.Errorf("failed to move %s into the cache: %w", id, err)
	}

	s.logger.Debug("package persisted", zap.String("package", id.Key()), zap.String("dir", dest), zap.String("tag", tag))
	return nil
}

// ReadManifest parses the manifest stored with a cached package.
func (s *Store) ReadManifest(id nuget.Identity) (*nuget.Manifest, error) {
	dir, err := s.dir(id)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, manifestName(id))
	exists, err := s.fs.FileExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", id, ErrNoManifest)
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest of %s: %w", id, err)
	}
	return nuget.ParseNuspec(bytes.NewReader(data))
}

func manifestName(id nuget.Identity) string {
	return strings.ToLower(id.Name) + ".nuspec"
}

func sessionKey(id nuget.Identity) string {
	return strings.ToLower(id.Key())
}

// MarkResolved records that id was resolved in this process.
func (s *Store) MarkResolved(id nuget.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[sessionKey(id)] = id
}

// IsResolved reports whether id was resolved in this process.
func (s *Store) IsResolved(id nuget.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.resolved[sessionKey(id)]
	return ok
}

// Dependencies returns the filtered dependency identities recorded for id.
func (s *Store) Dependencies(id nuget.Identity) ([]nuget.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deps, ok := s.deps[sessionKey(id)]
	return deps, ok
}

// StoreDependencies records the dependency identities of id unless some are
// already recorded.
func (s *Store) StoreDependencies(id nuget.Identity, deps []nuget.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(id)
	if _, ok := s.deps[key]; ok {
		return
	}
	s.deps[key] = append([]nuget.Identity(nil), deps...)
}

// Forget drops the session entries of id.
func (s *Store) Forget(id nuget.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(id)
	delete(s.resolved, key)
	delete(s.deps, key)
}

// ForgetDir drops the session entries of the package stored in dirName.
func (s *Store) ForgetDir(dirName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, id := range s.resolved {
		if strings.EqualFold(id.DirName(), dirName) {
			delete(s.resolved, key)
			delete(s.deps, key)
			return true
		}
	}
	return false
}
