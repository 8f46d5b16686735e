package sandbox

import (
	"errors"
	"go/scanner"
	"regexp"
	"strconv"
	"strings"
)

// positionPattern matches "file:line:col: message" and "line:col: message".
var positionPattern = regexp.MustCompile(`(?m)^(?:\S*?:)?(\d+):(\d+): (.*)$`)

// syntaxDiagnostics converts parser errors of a wrapped segment, keeping
// the first error of each line. Follow-up errors of a broken line point at
// the wrapper and repeat the same problem.
func syntaxDiagnostics(src string, err error) []Diagnostic {
	var list scanner.ErrorList
	if errors.As(err, &list) {
		list.RemoveMultiples()
		diags := make([]Diagnostic, 0, len(list))
		for _, e := range list {
			diags = append(diags, newDiagnostic(src, e.Pos.Line, e.Pos.Column, CodeSyntax, e.Msg))
		}
		return diags
	}
	return compileDiagnostics(src, err)
}

// compileDiagnostics converts an interpreter compile error. Errors without a
// position are reported on line 1.
func compileDiagnostics(src string, err error) []Diagnostic {
	var list scanner.ErrorList
	if errors.As(err, &list) {
		diags := make([]Diagnostic, 0, len(list))
		for _, e := range list {
			diags = append(diags, newDiagnostic(src, e.Pos.Line, e.Pos.Column, CodeCompile, e.Msg))
		}
		return diags
	}

	matches := positionPattern.FindAllStringSubmatch(err.Error(), -1)
	if len(matches) == 0 {
		return []Diagnostic{{Line: 1, Column: 1, Code: CodeCompile, Message: err.Error()}}
	}
	diags := make([]Diagnostic, 0, len(matches))
	for _, m := range matches {
		line, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		diags = append(diags, newDiagnostic(src, line, col, CodeCompile, m[3]))
	}
	return diags
}

// newDiagnostic maps a wrapped-segment position back onto the script and
// attaches the source snippet.
func newDiagnostic(src string, line, col int, code, msg string) Diagnostic {
	line -= wrapperLines
	if line < 1 {
		line, col = 1, 1
	}
	if col < 1 {
		col = 1
	}

	d := Diagnostic{Line: line, Column: col, Code: code, Message: msg}
	lines := strings.Split(src, "\n")
	if line > len(lines) {
		return d
	}

	raw := strings.TrimRight(lines[line-1], "\r")
	snippet := strings.TrimSpace(raw)
	if snippet == "" {
		return d
	}
	d.Snippet = snippet

	indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
	offset := col - 1 - indent
	if offset < 0 {
		offset = 0
	}
	if offset > len(snippet) {
		offset = len(snippet)
	}
	d.Caret = strings.Repeat(" ", offset) + "^"
	return d
}
