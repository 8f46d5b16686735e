package nuget

import (
	"strconv"
	"strings"

	"github.com/isdmx/scriptbox/config"
)

// DefaultTargetFramework is the platform tag packages are selected for.
const DefaultTargetFramework = config.DefaultTargetFramework

// DefaultFallbackFrameworks are the generic managed-platform tags tried after
// the exact target, in order.
var DefaultFallbackFrameworks = config.DefaultFallbackFrameworks

// NormalizeFramework maps a nuspec target framework name onto the short folder
// tag used inside packages, e.g. ".NETStandard2.0" -> "netstandard2.0".
func NormalizeFramework(name string) string {
	tf := strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(tf, ".") {
		return tf
	}
	tf = strings.TrimPrefix(tf, ".")

	switch {
	case strings.HasPrefix(tf, "netstandard"):
		return "netstandard" + dotted(strings.TrimPrefix(tf, "netstandard"))
	case strings.HasPrefix(tf, "netcoreapp"):
		v := dotted(strings.TrimPrefix(tf, "netcoreapp"))
		if major, _, _ := strings.Cut(v, "."); atoi(major) >= 5 {
			return "net" + v
		}
		return "netcoreapp" + v
	case strings.HasPrefix(tf, "netframework"):
		return "net" + strings.ReplaceAll(strings.TrimPrefix(tf, "netframework"), ".", "")
	}
	return tf
}

// dotted turns "v2.0" or "2.0" into "2.0".
func dotted(v string) string {
	return strings.TrimPrefix(v, "v")
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// FrameworkSelector picks the best-compatible platform tag from what a
// package offers: the exact target first, then each fallback in order.
type FrameworkSelector struct {
	Target    string
	Fallbacks []string
}

// DefaultSelector returns the selector for the default target platform.
func DefaultSelector() FrameworkSelector {
	return FrameworkSelector{
		Target:    DefaultTargetFramework,
		Fallbacks: append([]string(nil), DefaultFallbackFrameworks...),
	}
}

// Candidates returns the normalized tags in priority order.
func (s FrameworkSelector) Candidates() []string {
	out := make([]string, 0, len(s.Fallbacks)+1)
	seen := make(map[string]bool, len(s.Fallbacks)+1)
	for _, tf := range append([]string{s.Target}, s.Fallbacks...) {
		n := NormalizeFramework(tf)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Best returns the available tag with the highest priority. The returned value
// is the tag as spelled in available.
func (s FrameworkSelector) Best(available []string) (string, bool) {
	byNorm := make(map[string]string, len(available))
	for _, a := range available {
		n := NormalizeFramework(a)
		if _, ok := byNorm[n]; !ok {
			byNorm[n] = a
		}
	}
	for _, c := range s.Candidates() {
		if orig, ok := byNorm[c]; ok {
			return orig, true
		}
	}
	return "", false
}
