// Package romshelf holds the shared data model used across the manifest
// ingestion, scanning, cataloging, and organising packages: digests,
// manifest/scan entities, and the error domain type.
package romshelf

import (
	"errors"
	"strings"
)

// Error is the romshelf error domain type.
//
// Errors coming from romshelf components should be able to be inspected as
// ([errors.As]) an *Error at some point in the error chain.
//
// Components should create an Error at the system boundary (e.g. using a
// database client or reading a file) and intermediate layers should not wrap
// in another Error except to add additional [ErrorKind] information. Use
// [fmt.Errorf] with a "%w" verb in preference to creating a containing
// Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	switch e.Kind {
	case ErrConflict,
		ErrInternal,
		ErrInvalid,
		ErrPrecondition,
		ErrTransient,
		ErrPermanent:
		b.WriteString(string(e.Kind))
	default:
		b.WriteString("???")
	}
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is].
//
// It compares the error kind. Callers should compare against a declared
// [ErrorKind] over a specific error.
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind represents classes of errors to be checked against.
//
// If an error is unsure which kind to use, ErrInternal should be used.
type ErrorKind string

// Defined error kinds.
var (
	ErrConflict     = ErrorKind("conflict")     // conflicting action (e.g. duplicate catalog row)
	ErrInternal     = ErrorKind("internal")      // non-specific internal error
	ErrInvalid      = ErrorKind("invalid")       // invalid request
	ErrPrecondition = ErrorKind("precondition")  // some precondition unfulfilled (e.g. malformed manifest)
	ErrTransient    = ErrorKind("transient")     // may succeed on retry (IoError, ArchiveError)
	ErrPermanent    = ErrorKind("permanent")     // will never succeed (SchemaError)
)

// Error implements error.
func (e ErrorKind) Error() string {
	return string(e)
}
