package sandbox

import (
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"
)

// The interpreter decides from the first token of a chunk whether it holds
// declarations or statements, so a script mixing both is split into runs of
// one kind and evaluated chunk by chunk.

type segmentKind int

const (
	declSegment segmentKind = iota
	stmtSegment
)

// Wrappers mirror how the interpreter completes a chunk. The chunk starts on
// the line after the wrapper so reported lines are off by exactly one.
const (
	declWrapper  = "package main;"
	stmtWrapper  = "package main; func main() {"
	wrapperLines = 1
)

type segment struct {
	kind  segmentKind
	start int
	end   int
	// line and col locate start in the script, 1-based.
	line int
	col  int
}

type scannedToken struct {
	pos token.Pos
	tok token.Token
}

// splitSegments splits src into maximal runs of top-level declarations and
// top-level statements. Source that does not scan is returned as a single
// statement segment so that the parser reports the problem.
func splitSegments(src string) []segment {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var s scanner.Scanner
	broken := false
	s.Init(file, []byte(src), func(token.Position, string) { broken = true }, 0)

	var toks []scannedToken
	for {
		pos, tok, _ := s.Scan()
		if tok == token.EOF {
			break
		}
		toks = append(toks, scannedToken{pos: pos, tok: tok})
	}
	if broken || len(toks) == 0 {
		return []segment{{kind: stmtSegment, start: 0, end: len(src), line: 1, col: 1}}
	}

	var segs []segment
	depth := 0
	atStart := true
	for i, t := range toks {
		if atStart && depth == 0 && t.tok != token.SEMICOLON {
			kind := classifyStatement(toks, i)
			if len(segs) == 0 || segs[len(segs)-1].kind != kind {
				offset := file.Offset(t.pos)
				if len(segs) == 0 {
					offset = 0
				} else {
					segs[len(segs)-1].end = offset
				}
				pos := file.Position(file.Pos(offset))
				segs = append(segs, segment{kind: kind, start: offset, end: len(src), line: pos.Line, col: pos.Column})
			}
			atStart = false
		}

		switch t.tok {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACK, token.RBRACE:
			if depth > 0 {
				depth--
			}
		case token.SEMICOLON:
			if depth == 0 {
				atStart = true
			}
		}
	}
	return segs
}

// classifyStatement reports whether the top-level statement starting at
// toks[i] is a declaration. Function literals are statements; named
// functions and methods are declarations.
func classifyStatement(toks []scannedToken, i int) segmentKind {
	switch toks[i].tok {
	case token.VAR, token.CONST, token.TYPE, token.IMPORT:
		return declSegment
	case token.FUNC:
		if i+1 >= len(toks) {
			return stmtSegment
		}
		switch toks[i+1].tok {
		case token.IDENT:
			return declSegment
		case token.LPAREN:
			depth := 0
			for j := i + 1; j < len(toks); j++ {
				switch toks[j].tok {
				case token.LPAREN:
					depth++
				case token.RPAREN:
					depth--
				}
				if depth == 0 {
					if j+1 < len(toks) && toks[j+1].tok == token.IDENT {
						return declSegment
					}
					return stmtSegment
				}
			}
		}
	}
	return stmtSegment
}

// body returns the segment text positioned at its original line and column
// and preceded by a newline, so that the wrapper sits alone on line 1.
func (s segment) body(src string) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("\n", s.line-1+wrapperLines))
	b.WriteString(strings.Repeat(" ", s.col-1))
	b.WriteString(src[s.start:s.end])
	return b.String()
}

// wrapped returns the complete file the parser sees for the segment.
func (s segment) wrapped(src string) string {
	if s.kind == declSegment {
		return declWrapper + s.body(src)
	}
	return stmtWrapper + s.body(src) + "\n}"
}

// parsedSegment is a segment that passed the syntax check.
type parsedSegment struct {
	segment
	file *ast.File
}

// parseSegments syntax-checks every segment, collecting all diagnostics
// before anything runs.
func parseSegments(src string) ([]parsedSegment, []Diagnostic) {
	var (
		out   []parsedSegment
		diags []Diagnostic
	)
	for _, seg := range splitSegments(src) {
		fset := token.NewFileSet()
		f, err := parser.ParseFile(fset, "", seg.wrapped(src), parser.AllErrors)
		if err != nil {
			diags = append(diags, syntaxDiagnostics(src, err)...)
			continue
		}
		if vetted := vetConcurrency(src, fset, f); len(vetted) > 0 {
			diags = append(diags, vetted...)
			continue
		}
		out = append(out, parsedSegment{segment: seg, file: f})
	}
	return out, diags
}

// detachedCalls start interpreted callbacks on goroutines the evaluator
// cannot recover.
var detachedCalls = map[string]bool{
	"time.AfterFunc": true,
}

// vetConcurrency rejects go statements and detached callbacks. A panic on a
// goroutine other than the evaluation goroutine terminates the process.
func vetConcurrency(src string, fset *token.FileSet, f *ast.File) []Diagnostic {
	var diags []Diagnostic
	ast.Inspect(f, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.GoStmt:
			pos := fset.Position(n.Go)
			diags = append(diags, newDiagnostic(src, pos.Line, pos.Column, CodeCompile, "go statements are not allowed in scripts"))
		case *ast.SelectorExpr:
			if pkg, ok := n.X.(*ast.Ident); ok && detachedCalls[pkg.Name+"."+n.Sel.Name] {
				pos := fset.Position(n.Pos())
				diags = append(diags, newDiagnostic(src, pos.Line, pos.Column, CodeCompile, pkg.Name+"."+n.Sel.Name+" is not allowed in scripts"))
			}
		}
		return true
	})
	return diags
}

// imports returns the import paths declared by the segment.
func (p parsedSegment) imports() []string {
	var paths []string
	for _, imp := range p.file.Imports {
		paths = append(paths, strings.Trim(imp.Path.Value, "\"`"))
	}
	return paths
}

// yieldsValue reports whether the segment ends in an expression whose value
// is the result of the script. Calls to print functions are not results.
func (p parsedSegment) yieldsValue() bool {
	if p.kind != stmtSegment {
		return false
	}
	var body *ast.BlockStmt
	for _, decl := range p.file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == "main" && fn.Recv == nil {
			body = fn.Body
		}
	}
	if body == nil || len(body.List) == 0 {
		return false
	}

	expr, ok := body.List[len(body.List)-1].(*ast.ExprStmt)
	if !ok {
		return false
	}
	call, ok := expr.X.(*ast.CallExpr)
	if !ok {
		return true
	}
	return !isPrintCall(call)
}

var printFuncs = map[string]bool{
	"Print": true, "Println": true, "Printf": true,
	"Fprint": true, "Fprintln": true, "Fprintf": true,
	"Fatal": true, "Fatalf": true, "Fatalln": true,
	"Panic": true, "Panicf": true, "Panicln": true,
}

func isPrintCall(call *ast.CallExpr) bool {
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		return fn.Name == "print" || fn.Name == "println" || fn.Name == "panic"
	case *ast.SelectorExpr:
		pkg, ok := fn.X.(*ast.Ident)
		return ok && (pkg.Name == "fmt" || pkg.Name == "log") && printFuncs[fn.Sel.Name]
	}
	return false
}
