// Package nugettest provides in-memory packages and feeds for tests.
package nugettest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/isdmx/scriptbox/nuget"
)

// Group is a dependency group of a test package. An empty Framework produces
// a group without a targetFramework attribute.
type Group struct {
	Framework    string
	Dependencies map[string]string
}

// Package describes a test package.
type Package struct {
	ID      string
	Version string
	Groups  []Group
	// Files maps archive entry names (e.g. "lib/net8.0/A.dll") to content.
	Files map[string]string
}

// Identity returns the identity of p.
func (p Package) Identity() nuget.Identity {
	return nuget.Identity{Name: p.ID, Version: p.Version}
}

// Nuspec renders the manifest of p.
func (p Package) Nuspec() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<package xmlns="http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd"><metadata>`)
	fmt.Fprintf(&b, "<id>%s</id><version>%s</version>", p.ID, p.Version)
	if len(p.Groups) > 0 {
		b.WriteString("<dependencies>")
		for _, g := range p.Groups {
			if g.Framework == "" {
				b.WriteString("<group>")
			} else {
				fmt.Fprintf(&b, `<group targetFramework="%s">`, g.Framework)
			}
			for _, id := range sortedKeys(g.Dependencies) {
				fmt.Fprintf(&b, `<dependency id="%s" version="%s" />`, id, g.Dependencies[id])
			}
			b.WriteString("</group>")
		}
		b.WriteString("</dependencies>")
	}
	b.WriteString("</metadata></package>")
	return b.String()
}

// Bytes builds the .nupkg archive of p.
func (p Package) Bytes() []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			panic(err)
		}
	}

	write(p.ID+".nuspec", p.Nuspec())
	for _, name := range sortedKeys(p.Files) {
		write(name, p.Files[name])
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Source is an in-memory nuget.Source that counts calls.
type Source struct {
	mu        sync.Mutex
	packages  map[string]Package
	errs      map[string]error
	downloads map[string]int
	manifests map[string]int
	versions  map[string]int
	// Gate, when set, is received from before every Download.
	Gate chan struct{}
}

// NewSource creates a source serving packages.
func NewSource(packages ...Package) *Source {
	s := &Source{
		packages:  make(map[string]Package),
		errs:      make(map[string]error),
		downloads: make(map[string]int),
		manifests: make(map[string]int),
		versions:  make(map[string]int),
	}
	for _, p := range packages {
		s.Add(p)
	}
	return s
}

func key(id nuget.Identity) string {
	return strings.ToLower(id.Key())
}

// Add registers a package.
func (s *Source) Add(p Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[key(p.Identity())] = p
}

// Fail makes every call for id return err.
func (s *Source) Fail(id nuget.Identity, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[key(id)] = err
}

// Downloads returns how many times id was downloaded.
func (s *Source) Downloads(id nuget.Identity) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[key(id)]
}

// TotalCalls returns the number of calls of any kind.
func (s *Source) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range []map[string]int{s.downloads, s.manifests, s.versions} {
		for _, c := range m {
			n += c
		}
	}
	return n
}

// ManifestCalls returns how many times the manifest of id was fetched.
func (s *Source) ManifestCalls(id nuget.Identity) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifests[key(id)]
}

func (s *Source) Versions(_ context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[strings.ToLower(id)]++

	var out []string
	for _, p := range s.packages {
		if strings.EqualFold(p.ID, id) {
			out = append(out, p.Version)
		}
	}
	if len(out) == 0 {
		return nil, nuget.NewError(nuget.KindNotFound, nuget.Identity{Name: id}, "package not found")
	}
	sort.Strings(out)
	return out, nil
}

func (s *Source) Download(ctx context.Context, id nuget.Identity) ([]byte, error) {
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, &nuget.Error{Kind: nuget.KindNetworkTimeout, Package: id, Message: "download timed out", Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads[key(id)]++
	p, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

func (s *Source) Manifest(_ context.Context, id nuget.Identity) (*nuget.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[key(id)]++
	p, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return nuget.ParseNuspec(strings.NewReader(p.Nuspec()))
}

func (s *Source) lookup(id nuget.Identity) (Package, error) {
	if err, ok := s.errs[key(id)]; ok {
		return Package{}, err
	}
	p, ok := s.packages[key(id)]
	if !ok {
		return Package{}, nuget.NewError(nuget.KindNotFound, id, "package not found")
	}
	return p, nil
}

// NewFeed starts a flat-container HTTP feed serving packages. The returned
// counter reports requests per path.
func NewFeed(packages ...Package) (*httptest.Server, func(path string) int) {
	var mu sync.Mutex
	hits := make(map[string]int)
	routes := make(map[string][]byte)
	versions := make(map[string][]string)

	for _, p := range packages {
		id, v := strings.ToLower(p.ID), strings.ToLower(p.Version)
		routes[fmt.Sprintf("/%s/%s/%s.%s.nupkg", id, v, id, v)] = p.Bytes()
		routes[fmt.Sprintf("/%s/%s/%s.nuspec", id, v, id)] = []byte(p.Nuspec())
		versions[id] = append(versions[id], p.Version)
	}
	for id, vs := range versions {
		quoted := make([]string, len(vs))
		for i, v := range vs {
			quoted[i] = `"` + v + `"`
		}
		routes["/"+id+"/index.json"] = []byte(`{"versions":[` + strings.Join(quoted, ",") + `]}`)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()

		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))

	return srv, func(path string) int {
		mu.Lock()
		defer mu.Unlock()
		return hits[path]
	}
}
