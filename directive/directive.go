package directive

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/isdmx/scriptbox/nuget"
)

// ExpectedSyntax is the form every package reference must have.
const ExpectedSyntax = `#r "nuget: PackageName, Version"`

var (
	loosePattern  = regexp.MustCompile(`#r\s*"\s*nuget:[^"\r\n]*"`)
	strictPattern = regexp.MustCompile(`^#r\s*"\s*nuget:\s*([^,"\s][^,"\r\n]*?)\s*,\s*([^,"\s][^,"\r\n]*?)\s*"$`)
)

// Directive is a well-formed package reference.
type Directive struct {
	Name    string
	Version string
	// Line is 1-based.
	Line int
	Text string
}

// MalformedError is a reference that does not match ExpectedSyntax.
type MalformedError struct {
	Text string
	Line int
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("Invalid NuGet directive syntax on line %d: %s. Expected format: %s", e.Line, e.Text, ExpectedSyntax)
}

// Result is the outcome of a scan.
type Result struct {
	Directives []Directive
	Errors     []*MalformedError
}

// Empty reports whether the source carried no references at all.
func (r Result) Empty() bool {
	return len(r.Directives) == 0 && len(r.Errors) == 0
}

// Parse scans src for package references.
func Parse(src string) Result {
	var res Result
	seen := make(map[string]bool)

	for i, line := range strings.Split(src, "\n") {
		for _, text := range loosePattern.FindAllString(line, -1) {
			m := strictPattern.FindStringSubmatch(text)
			if m == nil || !nuget.ValidID(m[1]) || !nuget.ValidVersion(m[2]) {
				res.Errors = append(res.Errors, &MalformedError{Text: text, Line: i + 1})
				continue
			}

			d := Directive{Name: m[1], Version: m[2], Line: i + 1, Text: text}
			key := strings.ToLower(d.Name + "@" + d.Version)
			if seen[key] {
				continue
			}
			seen[key] = true
			res.Directives = append(res.Directives, d)
		}
	}
	return res
}

// Strip replaces every reference with spaces of the same width.
func Strip(src string) string {
	return loosePattern.ReplaceAllStringFunc(src, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
}
