// Package errors defines the stable error-kind taxonomy the core raises.
// The core raises these abstract kinds; an enclosing layer (out of scope
// here) maps them to stable numeric wire codes.
package errors

import "fmt"

// Kind is one of the abstract error kinds the core can raise.
type Kind string

const (
	MethodDoesNotExist         Kind = "MethodDoesNotExist"
	TypeError                  Kind = "TypeError"
	DivideByZero               Kind = "DivideByZero"
	InvalidArrayIndex          Kind = "InvalidArrayIndex"
	ModuleNotFound             Kind = "ModuleNotFound"
	ContextNotFound            Kind = "ContextNotFound"
	EmptyStack                 Kind = "EmptyStack"
	InvalidStackItem           Kind = "InvalidStackItem"
	VisualisationNotFound      Kind = "VisualisationNotFound"
	VisualisationExprFailed    Kind = "VisualisationExpressionFailed"
)

// Error is the Go error type carrying one abstract Kind plus structured
// fields, threaded through the engine boundary rather than ad hoc
// fmt.Errorf strings, so the boundary always has a typed, inspectable kind
// to work with instead of parsing message text.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds an *Error with the given kind and message.
func New(kind Kind, message string, fields ...string) *Error {
	e := &Error{Kind: kind, Message: message}
	if len(fields) > 0 {
		e.Fields = make(map[string]string, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			e.Fields[fields[i]] = fields[i+1]
		}
	}
	return e
}

// MethodDoesNotExistf builds the common "no method X on type Y" error.
func MethodDoesNotExistf(method, typeName string) *Error {
	return New(MethodDoesNotExist, fmt.Sprintf("method %q does not exist on type %q", method, typeName),
		"method", method, "type", typeName)
}

// TypeErrorf builds a TypeError carrying expected/got/where fields.
func TypeErrorf(expected, got, where string) *Error {
	return New(TypeError, fmt.Sprintf("expected %s, got %s in %s", expected, got, where),
		"expected", expected, "got", got, "where", where)
}
