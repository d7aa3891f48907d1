package receipt

import (
	"errors"
	"net/http"
)

// ErrorKind classifies pipeline failures
type ErrorKind string

const (
	KindNoFile           ErrorKind = "NoFile"
	KindUnsupportedType  ErrorKind = "UnsupportedType"
	KindTooLarge         ErrorKind = "TooLarge"
	KindExtractionFailed ErrorKind = "ExtractionFailed"
	KindParseFailed      ErrorKind = "ParseFailed"
	KindNotFound         ErrorKind = "NotFound"
)

// HTTPStatus returns the response status used for the kind
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindNoFile, KindUnsupportedType:
		return http.StatusBadRequest
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified pipeline error. Message is safe to show to users.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNoFile          = &Error{Kind: KindNoFile, Message: "No file uploaded"}
	ErrUnsupportedType = &Error{Kind: KindUnsupportedType, Message: "Only image and PDF files are allowed!"}
	ErrTooLarge        = &Error{Kind: KindTooLarge, Message: "File is too large"}
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "Receipt not found"}
)

// KindOf returns the kind of a pipeline error, or "" for unclassified errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// userMessage returns the message shown to API clients for err
func userMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
