package nuget

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies resolution failures.
type ErrorKind int

// Resolution failure kinds
const (
	KindOther ErrorKind = iota
	KindNotFound
	KindIncompatiblePlatform
	KindNetworkTimeout
	KindMalformedDirective
	KindInitializationFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindIncompatiblePlatform:
		return "IncompatiblePlatform"
	case KindNetworkTimeout:
		return "NetworkTimeout"
	case KindMalformedDirective:
		return "MalformedDirective"
	case KindInitializationFailure:
		return "InitializationFailure"
	default:
		return "Other"
	}
}

// Error is a resolution failure for one package.
type Error struct {
	Kind    ErrorKind
	Package Identity
	Message string
	Err     error
}

// Sentinel values for errors.Is; they match any *Error of the same kind.
var (
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrIncompatiblePlatform  = &Error{Kind: KindIncompatiblePlatform}
	ErrNetworkTimeout        = &Error{Kind: KindNetworkTimeout}
	ErrMalformedDirective    = &Error{Kind: KindMalformedDirective}
	ErrInitializationFailure = &Error{Kind: KindInitializationFailure}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Package.Name != "" {
		msg = fmt.Sprintf("%s: %s", e.Package, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Package == (Identity{}) && t.Err == nil
}

// NewError creates an *Error for the given package.
func NewError(kind ErrorKind, id Identity, format string, args ...any) *Error {
	return &Error{Kind: kind, Package: id, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err. Deadline errors from bounded network calls
// are reported as KindNetworkTimeout.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetworkTimeout
	}
	return KindOther
}

// AsError converts err into an *Error attributed to id.
func AsError(id Identity, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Package.Name == "" {
			cp := *e
			cp.Package = id
			return &cp
		}
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetworkTimeout, Package: id, Message: "network operation timed out", Err: err}
	}
	return &Error{Kind: KindOther, Package: id, Message: "resolution failed", Err: err}
}

// wrapTransport maps a transport failure onto a kind.
func wrapTransport(id Identity, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetworkTimeout, Package: id, Message: op + " timed out", Err: err}
	}
	return &Error{Kind: KindOther, Package: id, Message: op + " failed", Err: err}
}
