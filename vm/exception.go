package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Exception values
// ---------------------------------------------------------------------------

// Exception is an instance of Exception or one of its subclasses.
type Exception struct {
	ivarTable
	class   *Class
	Message string
	// Traceback holds the failing pc of every frame the exception passed
	// through, innermost first.
	Traceback []int
}

// Class returns the exception's class.
func (e *Exception) Class() *Class { return e.class }

func (e *Exception) Inspect() string {
	if e.Message == "" {
		return fmt.Sprintf("#<%s>", e.class.Name)
	}
	return fmt.Sprintf("#<%s: %s>", e.class.Name, e.Message)
}

// ---------------------------------------------------------------------------
// Error: a raised exception travelling through Go error returns
// ---------------------------------------------------------------------------

// Error wraps a raised exception value. Host methods return it (or any other
// error, which the engine converts to a RuntimeError) to raise.
type Error struct {
	Value *Exception
}

func (e *Error) Error() string {
	if e.Value.Message == "" {
		return e.Value.class.Name
	}
	return e.Value.class.Name + ": " + e.Value.Message
}

// ClassName returns the name of the raised exception's class.
func (e *Error) ClassName() string { return e.Value.class.Name }

// FormatTraceback renders the error with its traceback offsets.
func (e *Error) FormatTraceback() string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	for _, pc := range e.Value.Traceback {
		fmt.Fprintf(&sb, "\n\tat pc %04d", pc)
	}
	return sb.String()
}

// AsError extracts a raised exception from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Fatal interpreter errors
// ---------------------------------------------------------------------------

var (
	// ErrInternal marks fatal interpreter errors recovered at the top level.
	ErrInternal = errors.New("internal interpreter error")
	// ErrHalted is returned by every Run after a fatal error.
	ErrHalted = errors.New("engine halted after internal error")
)

// InternalError is panicked for conditions valid bytecode and correct
// registrations never produce. Interpreted handlers never see it.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "internal error: " + e.Msg }

func (e *InternalError) Unwrap() error { return ErrInternal }

func internalErrorf(format string, args ...interface{}) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// ---------------------------------------------------------------------------
// Raising helpers
// ---------------------------------------------------------------------------

// NewException builds an exception of the given builtin class.
func (s *Space) NewException(def *ClassDef, msg string) *Exception {
	return &Exception{class: s.Classes.Get(def), Message: msg}
}

// Errorf builds a raisable error of the given builtin exception class.
func (s *Space) Errorf(def *ClassDef, format string, args ...interface{}) *Error {
	return &Error{Value: s.NewException(def, fmt.Sprintf(format, args...))}
}

// TypeError builds a TypeError.
func (s *Space) TypeError(format string, args ...interface{}) *Error {
	return s.Errorf(TypeErrorDef, format, args...)
}

// ArgumentError builds an ArgumentError for a wrong argument count.
func (s *Space) ArgumentError(given, expected int) *Error {
	return s.Errorf(ArgumentErrorDef, "wrong number of arguments (given %d, expected %d)", given, expected)
}

// toError converts any error returned into the engine to a raisable *Error.
func (s *Space) toError(err error) *Error {
	if e, ok := AsError(err); ok {
		return e
	}
	var ie *InternalError
	if errors.As(err, &ie) {
		panic(ie)
	}
	return s.Errorf(RuntimeErrorDef, "%s", err.Error())
}
