package resolver

import (
	"strings"

	"github.com/isdmx/scriptbox/nuget"
)

// Classify reports whether the failure of a transitive dependency is
// expected and can be dropped silently. Only NotFound and
// IncompatiblePlatform failures of builtin packages are expected. Failures
// without one of those kinds fall back to matching the message text.
func (p Policy) Classify(dependency string, err error) bool {
	if err == nil || !p.IsBuiltin(dependency) {
		return false
	}

	switch nuget.KindOf(err) {
	case nuget.KindNotFound, nuget.KindIncompatiblePlatform:
		return true
	case nuget.KindOther:
		msg := strings.ToLower(err.Error())
		return strings.Contains(msg, "not found") || strings.Contains(msg, "incompatible")
	}
	return false
}
