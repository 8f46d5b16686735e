package nuget

import (
	"strconv"
	"strings"
)

// VersionRange is a parsed NuGet version range.
//
//	1.0        -> 1.0 <= x
//	[1.0]      -> x == 1.0
//	[1.0,2.0)  -> 1.0 <= x < 2.0
//	(,2.0]     -> x <= 2.0
type VersionRange struct {
	MinVersion     string
	MaxVersion     string
	IsMinInclusive bool
	IsMaxInclusive bool
	Original       string
}

// ParseVersionRange parses NuGet range text. Malformed text yields a range
// with only Original set.
func ParseVersionRange(s string) VersionRange {
	s = strings.TrimSpace(s)
	r := VersionRange{Original: s}
	if s == "" {
		return r
	}

	first := s[0]
	if first != '[' && first != '(' {
		r.MinVersion = s
		r.IsMinInclusive = true
		return r
	}

	last := s[len(s)-1]
	if len(s) < 3 || (last != ']' && last != ')') {
		return VersionRange{Original: s}
	}
	r.IsMinInclusive = first == '['
	r.IsMaxInclusive = last == ']'

	parts := strings.Split(s[1:len(s)-1], ",")
	switch len(parts) {
	case 1:
		if !r.IsMinInclusive || !r.IsMaxInclusive {
			return VersionRange{Original: s}
		}
		v := strings.TrimSpace(parts[0])
		r.MinVersion, r.MaxVersion = v, v
	case 2:
		r.MinVersion = strings.TrimSpace(parts[0])
		r.MaxVersion = strings.TrimSpace(parts[1])
	default:
		return VersionRange{Original: s}
	}
	return r
}

// HasMin reports whether the range has a lower bound.
func (r VersionRange) HasMin() bool { return r.MinVersion != "" }

// HasMax reports whether the range has an upper bound.
func (r VersionRange) HasMax() bool { return r.MaxVersion != "" }

func (r VersionRange) String() string { return r.Original }

// IsPrerelease reports whether v carries a prerelease label.
func IsPrerelease(v string) bool {
	core, _, _ := strings.Cut(v, "+")
	return strings.Contains(core, "-")
}

// CompareVersions orders two NuGet versions. Missing numeric parts count as
// zero and a prerelease sorts before its release.
func CompareVersions(a, b string) int {
	aCore, aPre := splitVersion(a)
	bCore, bPre := splitVersion(b)

	an := strings.Split(aCore, ".")
	bn := strings.Split(bCore, ".")
	for i := 0; i < len(an) || i < len(bn); i++ {
		if c := compareNumeric(part(an, i), part(bn, i)); c != 0 {
			return c
		}
	}

	switch {
	case aPre == "" && bPre == "":
		return 0
	case aPre == "":
		return 1
	case bPre == "":
		return -1
	}

	ap := strings.Split(aPre, ".")
	bp := strings.Split(bPre, ".")
	for i := 0; i < len(ap) && i < len(bp); i++ {
		if c := compareLabel(ap[i], bp[i]); c != 0 {
			return c
		}
	}
	return compareInt(len(ap), len(bp))
}

// LatestStable returns the highest stable version, or the highest prerelease
// when no stable version exists.
func LatestStable(versions []string) (string, bool) {
	var best, bestPre string
	for _, v := range versions {
		if IsPrerelease(v) {
			if bestPre == "" || CompareVersions(v, bestPre) > 0 {
				bestPre = v
			}
			continue
		}
		if best == "" || CompareVersions(v, best) > 0 {
			best = v
		}
	}
	if best != "" {
		return best, true
	}
	return bestPre, bestPre != ""
}

func splitVersion(v string) (core, pre string) {
	v = strings.ToLower(strings.TrimSpace(v))
	v, _, _ = strings.Cut(v, "+")
	core, pre, _ = strings.Cut(v, "-")
	return core, pre
}

func part(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return "0"
}

func compareNumeric(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return compareInt(ai, bi)
	}
	return strings.Compare(a, b)
}

func compareLabel(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return compareInt(ai, bi)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
