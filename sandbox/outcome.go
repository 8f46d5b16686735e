package sandbox

import "time"

// Kind is the category of an evaluation outcome.
type Kind int

// Outcome kinds
const (
	Success Kind = iota
	CompileError
	RuntimeError
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "Success"
	case CompileError:
		return "CompileError"
	case RuntimeError:
		return "RuntimeError"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Diagnostic codes
const (
	CodeSyntax  = "SYNTAX"
	CodeCompile = "COMPILE"
)

// Diagnostic is one compile-time problem. Line and Column are 1-based
// positions in the submitted script.
type Diagnostic struct {
	Line    int
	Column  int
	Code    string
	Message string
	// Snippet is the offending source line without surrounding whitespace,
	// and Caret marks Column beneath it. Both are empty when unavailable.
	Snippet string
	Caret   string
}

// RuntimeFailure describes a panic that escaped the script.
type RuntimeFailure struct {
	Type    string
	Message string
	// ScriptLine is 0 when the panic location is unknown.
	ScriptLine   int
	InnerType    string
	InnerMessage string
	StackTrace   []string
}

// Outcome is the result of one evaluation. Which fields are set depends on
// Kind:
//
//	Success       Output, ReturnValue (nil when the script ends in a statement)
//	CompileError  Diagnostics
//	RuntimeError  Output, Runtime
//	Timeout       Timeout, Cancelled
//
// Cancelled marks a Timeout caused by the caller's context ending first;
// Timeout then holds the time the run was given before it was abandoned.
type Outcome struct {
	Kind        Kind
	Output      string
	ReturnValue *string
	Diagnostics []Diagnostic
	Runtime     *RuntimeFailure
	Timeout     time.Duration
	Cancelled   bool
	Elapsed     time.Duration
}
