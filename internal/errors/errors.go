// Package errors defines the structured error taxonomy for the analysis
// pipeline. Data-quality conditions (missing values, small samples,
// degenerate predictors) are recoverable and surfaced as flagged results;
// configuration mistakes are fatal and carry ErrConfiguration.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Code is a machine-readable error category.
type Code string

const (
	// CodeConfiguration marks programming or config mistakes: unknown
	// variables in a model spec, cyclic edges, malformed scale
	// definitions. Fatal before any fitting starts.
	CodeConfiguration Code = "CONFIGURATION"

	// CodeInsufficientData marks an edge or segment whose complete-case
	// sample fell below the configured floor.
	CodeInsufficientData Code = "INSUFFICIENT_DATA"

	// CodeDegenerate marks a fit with a zero-variance variable.
	CodeDegenerate Code = "DEGENERATE"

	// CodeIngest marks unreadable or malformed input files.
	CodeIngest Code = "INGEST"

	// CodeNotFound marks a missing resource on the results API.
	CodeNotFound Code = "NOT_FOUND"
)

// Error is a structured pipeline error.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Render implements render.Renderer so handlers can return pipeline
// errors directly.
func (e *Error) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.httpStatus())
	return nil
}

func (e *Error) httpStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConfiguration:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// New creates a structured error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a structured error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Wrapf annotates err with a code and a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the Code from an error chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return CodeOf(err) == CodeConfiguration
}
