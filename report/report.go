package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/isdmx/scriptbox/resolver"
	"github.com/isdmx/scriptbox/sandbox"
)

// Headers and fixed sentences
const (
	ResolutionHeader  = "NuGet Package Resolution Error(s):"
	CompilationHeader = "Compilation Error(s):"
	RuntimePrefix     = "Runtime Error: "
	NoOutput          = "Script executed successfully with no output."
	ResultPrefix      = "Result: "
)

// Resolution renders resolution failures, one indented line each.
func Resolution(errs []*resolver.ResolutionError) string {
	var b strings.Builder
	b.WriteString(ResolutionHeader)
	for _, err := range errs {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Outcome renders an evaluation outcome.
func Outcome(o *sandbox.Outcome) string {
	switch o.Kind {
	case sandbox.CompileError:
		return Compilation(o.Diagnostics)
	case sandbox.RuntimeError:
		return Runtime(o.Runtime, o.Output)
	case sandbox.Timeout:
		if o.Cancelled {
			return Cancelled(o.Timeout)
		}
		return TimedOut(o.Timeout)
	default:
		return Success(o.Output, o.ReturnValue)
	}
}

// Compilation renders compile diagnostics.
func Compilation(diags []sandbox.Diagnostic) string {
	var b strings.Builder
	b.WriteString(CompilationHeader)
	for _, d := range diags {
		fmt.Fprintf(&b, "\n  Line %d, Column %d: %s - %s", d.Line, d.Column, d.Code, d.Message)
		if d.Snippet != "" {
			b.WriteString("\n    ")
			b.WriteString(d.Snippet)
			if d.Caret != "" {
				b.WriteString("\n    ")
				b.WriteString(d.Caret)
			}
		}
	}
	return b.String()
}

// Runtime renders a runtime failure. Output captured before the failure
// follows the stack trace.
func Runtime(f *sandbox.RuntimeFailure, output string) string {
	if f == nil {
		f = &sandbox.RuntimeFailure{Type: "unknown"}
	}

	var b strings.Builder
	b.WriteString(RuntimePrefix)
	b.WriteString(f.Type)
	fmt.Fprintf(&b, "\nMessage: %s", f.Message)
	if f.ScriptLine > 0 {
		fmt.Fprintf(&b, "\nLine: %d", f.ScriptLine)
	}
	if f.InnerType != "" {
		fmt.Fprintf(&b, "\nInner Error: %s: %s", f.InnerType, f.InnerMessage)
	}
	if len(f.StackTrace) > 0 {
		b.WriteString("\nStack Trace:")
		for _, frame := range f.StackTrace {
			b.WriteString("\n  ")
			b.WriteString(frame)
		}
	}
	if output != "" {
		b.WriteString("\nOutput:\n")
		b.WriteString(strings.TrimRight(output, "\n"))
	}
	return b.String()
}

// TimedOut renders the timeout sentence for d, in seconds.
func TimedOut(d time.Duration) string {
	return fmt.Sprintf("Error: Script execution timed out after %s seconds.", seconds(d))
}

// Cancelled renders the sentence for a run the caller abandoned after d.
func Cancelled(d time.Duration) string {
	return fmt.Sprintf("Error: Script execution was cancelled after %s seconds.", seconds(d))
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// Success renders captured output verbatim followed by the result line.
func Success(output string, value *string) string {
	if output == "" && value == nil {
		return NoOutput
	}
	if value == nil {
		return output
	}
	if output != "" && !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	return output + ResultPrefix + *value
}
