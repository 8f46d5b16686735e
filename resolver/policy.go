package resolver

import (
	"strings"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/nuget"
)

// Policy decides which dependencies are resolved and at which version.
// Prefix and name matching is case-insensitive.
type Policy struct {
	// AlwaysResolvePrefixes win over every skip rule and are pinned to
	// ExtensionsVersion.
	AlwaysResolvePrefixes []string
	ExtensionsVersion     string
	// SkipExact and SkipPrefixes name packages the sandbox already provides.
	SkipExact    []string
	SkipPrefixes []string
	// BuiltinPrefixes mark dependencies whose NotFound or
	// IncompatiblePlatform failures are expected.
	BuiltinPrefixes []string
}

// DefaultPolicy returns the policy used when no configuration is given.
func DefaultPolicy() Policy {
	return Policy{
		AlwaysResolvePrefixes: config.DefaultAlwaysResolvePrefixes,
		ExtensionsVersion:     config.DefaultExtensionsVersion,
		SkipExact:             config.DefaultSkipExact,
		SkipPrefixes:          config.DefaultSkipPrefixes,
		BuiltinPrefixes:       config.DefaultBuiltinPrefixes,
	}
}

// PolicyFromConfig builds a policy from the resolver.policy section.
func PolicyFromConfig(cfg config.PolicyConfig) Policy {
	return Policy{
		AlwaysResolvePrefixes: cfg.AlwaysResolvePrefixes,
		ExtensionsVersion:     cfg.ExtensionsVersion,
		SkipExact:             cfg.SkipExact,
		SkipPrefixes:          cfg.SkipPrefixes,
		BuiltinPrefixes:       cfg.BuiltinPrefixes,
	}
}

// ShouldResolve reports whether a dependency is resolved at all.
func (p Policy) ShouldResolve(id string) bool {
	if p.isExtension(id) {
		return true
	}
	for _, name := range p.SkipExact {
		if strings.EqualFold(id, name) {
			return false
		}
	}
	return !hasPrefixFold(id, p.SkipPrefixes)
}

// BestVersion picks the version to resolve for a dependency: the pinned
// extensions version, the range minimum, an inclusive maximum, the raw range
// text, then nuget.LatestVersion.
func (p Policy) BestVersion(dep nuget.Dependency) string {
	if p.isExtension(dep.ID) && p.ExtensionsVersion != "" {
		return p.ExtensionsVersion
	}
	r := dep.Range
	switch {
	case r.HasMin():
		return r.MinVersion
	case r.HasMax() && r.IsMaxInclusive:
		return r.MaxVersion
	case strings.TrimSpace(r.Original) != "":
		return r.Original
	}
	return nuget.LatestVersion
}

// IsBuiltin reports whether id belongs to a platform namespace.
func (p Policy) IsBuiltin(id string) bool {
	return hasPrefixFold(id, p.BuiltinPrefixes)
}

func (p Policy) isExtension(id string) bool {
	return hasPrefixFold(id, p.AlwaysResolvePrefixes)
}

func hasPrefixFold(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			return true
		}
	}
	return false
}
