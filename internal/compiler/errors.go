package compiler

import (
	"errors"
	"fmt"

	"github.com/me/dxwdl/pkg/wdl"
)

// ErrorCode classifies fatal compilation errors.
type ErrorCode string

const (
	ErrUndefinedSymbol  ErrorCode = "UNDEFINED_SYMBOL"
	ErrIllegalCallName  ErrorCode = "ILLEGAL_CALL_NAME"
	ErrUnsupported      ErrorCode = "UNSUPPORTED_CONSTRUCT"
	ErrMissingCallInput ErrorCode = "MISSING_CALL_INPUT"
	ErrNonConstDefault  ErrorCode = "NON_CONST_DEFAULT"
	ErrBadFragment      ErrorCode = "BAD_FRAGMENT"
	ErrUnresolvedCall   ErrorCode = "UNRESOLVED_CALL"
	ErrCycle            ErrorCode = "CYCLE"
)

// Error is a fatal compilation error tied to a source position when
// one is known. Compilation either succeeds wholly or fails with an
// Error; no partial namespace is ever returned.
type Error struct {
	Code ErrorCode
	Pos  wdl.Pos
	Msg  string
}

func (e *Error) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func errf(code ErrorCode, pos wdl.Pos, format string, args ...any) *Error {
	return &Error{Code: code, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code from err, when it is a compiler Error.
func CodeOf(err error) (ErrorCode, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return "", false
}
