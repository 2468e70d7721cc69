package errors

import (
	stderrors "errors"
	"fmt"
	"go/token"
)

// ErrorType represents the family a generation-time diagnostic belongs to
type ErrorType string

const (
	// ErrorTypeShape covers malformed input: parameter patterns, option syntax, return shapes
	ErrorTypeShape ErrorType = "shape"
	// ErrorTypeCompatibility covers valid input whose combination cannot be wired
	ErrorTypeCompatibility ErrorType = "compatibility"
	// ErrorTypeSource covers template files the generator cannot work with at all
	ErrorTypeSource ErrorType = "source"
)

// Code identifies a single diagnostic kind. Codes are stable and used by tests and tooling.
type Code string

const (
	CodeUnknownOption      Code = "unknown-option"
	CodeDuplicateOption    Code = "duplicate-option"
	CodeOptionSyntax       Code = "option-syntax"
	CodeOptionKind         Code = "option-kind"
	CodeNonIdentParam      Code = "non-identifier-parameter"
	CodeResultShape        Code = "result-shape"
	CodeMissingBody        Code = "missing-body"
	CodeReservedName       Code = "reserved-name"
	CodeDuplicateDirective Code = "duplicate-directive"
	CodeMisplacedDirective Code = "misplaced-directive"
	CodeContextBorrow      Code = "context-borrowed-receiver"
	CodeReceiverContext    Code = "receiver-requires-context"
	CodeAdjustBlocking     Code = "adjust-requires-suspending"
	CodeMissingSleep       Code = "missing-sleep"
	CodeSyntax             Code = "syntax"
	CodeMissingBuildTag    Code = "missing-build-tag"
)

// Error is a generation-time diagnostic. It is terminal for the expansion that produced it.
type Error struct {
	Type    ErrorType
	Code    Code
	Message string
	Pos     token.Position
}

func (e *Error) Error() string {
	if e.Pos.IsValid() || e.Pos.Filename != "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Message)
	}
	return e.Message
}

// Shape builds a shape diagnostic
func Shape(code Code, pos token.Position, format string, args ...any) *Error {
	return &Error{Type: ErrorTypeShape, Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Compatibility builds a compatibility diagnostic
func Compatibility(code Code, pos token.Position, format string, args ...any) *Error {
	return &Error{Type: ErrorTypeCompatibility, Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Source builds a diagnostic about a whole template file
func Source(code Code, pos token.Position, format string, args ...any) *Error {
	return &Error{Type: ErrorTypeSource, Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// HasCode reports whether err, or any error it wraps or joins, is a diagnostic with the given code
func HasCode(err error, code Code) bool {
	for _, d := range Diagnostics(err) {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Diagnostics flattens err into the diagnostics it carries, walking wrapped and joined errors
func Diagnostics(err error) []*Error {
	if err == nil {
		return nil
	}
	var out []*Error
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if d, ok := e.(*Error); ok {
			out = append(out, d)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

// Join aggregates diagnostics from independent expansions into a single error
func Join(diags ...*Error) error {
	if len(diags) == 0 {
		return nil
	}
	errs := make([]error, len(diags))
	for i, d := range diags {
		errs[i] = d
	}
	return stderrors.Join(errs...)
}
