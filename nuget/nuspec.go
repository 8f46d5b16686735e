package nuget

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Dependency is a declared package dependency.
type Dependency struct {
	ID    string
	Range VersionRange
}

// DependencyGroup is the dependency list declared for one target framework.
// An empty TargetFramework applies to every platform.
type DependencyGroup struct {
	TargetFramework string
	Dependencies    []Dependency
}

// Manifest is the subset of a .nuspec file needed for resolution.
type Manifest struct {
	ID           string
	Version      string
	Groups       []DependencyGroup
	Dependencies []Dependency
}

type nuspecDependency struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}

type nuspecDocument struct {
	XMLName  xml.Name `xml:"package"`
	Metadata struct {
		ID           string `xml:"id"`
		Version      string `xml:"version"`
		Dependencies struct {
			Groups []struct {
				TargetFramework string             `xml:"targetFramework,attr"`
				Dependencies    []nuspecDependency `xml:"dependency"`
			} `xml:"group"`
			Dependencies []nuspecDependency `xml:"dependency"`
		} `xml:"dependencies"`
	} `xml:"metadata"`
}

// ParseNuspec parses a .nuspec manifest.
func ParseNuspec(r io.Reader) (*Manifest, error) {
	var doc nuspecDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode nuspec: %w", err)
	}
	if strings.TrimSpace(doc.Metadata.ID) == "" {
		return nil, fmt.Errorf("nuspec has no package id")
	}

	m := &Manifest{
		ID:           strings.TrimSpace(doc.Metadata.ID),
		Version:      strings.TrimSpace(doc.Metadata.Version),
		Dependencies: convertDependencies(doc.Metadata.Dependencies.Dependencies),
	}
	for _, g := range doc.Metadata.Dependencies.Groups {
		m.Groups = append(m.Groups, DependencyGroup{
			TargetFramework: strings.TrimSpace(g.TargetFramework),
			Dependencies:    convertDependencies(g.Dependencies),
		})
	}
	return m, nil
}

func convertDependencies(in []nuspecDependency) []Dependency {
	out := make([]Dependency, 0, len(in))
	for _, d := range in {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			continue
		}
		out = append(out, Dependency{ID: id, Range: ParseVersionRange(d.Version)})
	}
	return out
}

// DependenciesFor returns the dependencies that apply to the selector's
// platform: the best-matching framework group (or the framework-neutral group
// when none match) plus any ungrouped dependencies.
func (m *Manifest) DependenciesFor(sel FrameworkSelector) []Dependency {
	deps := append([]Dependency(nil), m.Dependencies...)
	if len(m.Groups) == 0 {
		return deps
	}

	tags := make([]string, 0, len(m.Groups))
	for _, g := range m.Groups {
		if g.TargetFramework != "" {
			tags = append(tags, g.TargetFramework)
		}
	}
	if best, ok := sel.Best(tags); ok {
		for _, g := range m.Groups {
			if g.TargetFramework == best {
				return append(deps, g.Dependencies...)
			}
		}
	}
	for _, g := range m.Groups {
		if g.TargetFramework == "" {
			deps = append(deps, g.Dependencies...)
		}
	}
	return deps
}
