package sandbox

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"

	"github.com/traefik/yaegi/interp"
)

// panicMarker matches the "line:col: panic" lines the interpreter writes to
// stderr for every interpreted frame a panic unwinds, innermost first.
var panicMarker = regexp.MustCompile(`(?m)^(?:\S*?:)?(\d+):(\d+): panic`)

// runtimeFailure classifies an error returned by the interpreter after a
// panic, using the markers found in stderr to locate it in the script.
func runtimeFailure(err error, stderr string) *RuntimeFailure {
	value := any(err)
	var p interp.Panic
	if errors.As(err, &p) {
		value = p.Value
	}
	f := describePanic(value)

	for _, m := range panicMarker.FindAllStringSubmatch(stderr, -1) {
		line, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		line -= wrapperLines
		if line < 1 {
			continue
		}
		if f.ScriptLine == 0 {
			f.ScriptLine = line
		}
		f.StackTrace = append(f.StackTrace, fmt.Sprintf("at line %d, column %d", line, col))
	}
	return f
}

// describePanic names a recovered panic value. Values raised by interpreted
// code arrive as reflect.Value and are described by what they hold.
func describePanic(value any) *RuntimeFailure {
	if rv, ok := value.(reflect.Value); ok {
		switch {
		case !rv.IsValid():
			value = nil
		case rv.CanInterface():
			value = rv.Interface()
		}
	}
	f := &RuntimeFailure{Type: fmt.Sprintf("%T", value)}
	switch v := value.(type) {
	case error:
		f.Message = v.Error()
		if inner := errors.Unwrap(v); inner != nil {
			f.InnerType = fmt.Sprintf("%T", inner)
			f.InnerMessage = inner.Error()
		}
	case nil:
		f.Type = "nil"
		f.Message = "panic called with nil argument"
	default:
		f.Message = fmt.Sprint(v)
	}
	return f
}
