package resolver

import (
	"path/filepath"
	"strings"
)

// Dedupe keeps one artifact per logical name (file name without extension).
// When two artifacts share a name the longer path is kept, in the position
// where the name first appeared.
func Dedupe(paths []string) []string {
	index := make(map[string]int, len(paths))
	out := make([]string, 0, len(paths))

	for _, p := range paths {
		base := filepath.Base(p)
		name := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
		if i, ok := index[name]; ok {
			if len(p) > len(out[i]) {
				out[i] = p
			}
			continue
		}
		index[name] = len(out)
		out = append(out, p)
	}
	return out
}
