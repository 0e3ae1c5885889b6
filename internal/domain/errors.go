package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the storage, render and service
// layers matches exactly one of these through errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrIO            = errors.New("i/o failure")
	ErrSerialization = errors.New("serialization failure")
	ErrRenderWorker  = errors.New("render worker failure")
	ErrTimeout       = errors.New("timed out")
	ErrUnavailable   = errors.New("render worker unavailable")
	ErrSource        = errors.New("table source failure")
)

// NotFoundError reports a missing document or block.
type NotFoundError struct {
	Kind string // "document" or "block"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DocumentNotFound returns a NotFoundError for a document id.
func DocumentNotFound(id string) error { return &NotFoundError{Kind: "document", ID: id} }

// BlockNotFound returns a NotFoundError for a block id.
func BlockNotFound(id string) error { return &NotFoundError{Kind: "block", ID: id} }

// ValidationError carries the first rule a block or document broke.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// UserMessage turns any error from the command layer into the short text
// shown by the front end.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var nf *NotFoundError
	if errors.As(err, &nf) {
		switch nf.Kind {
		case "document":
			return fmt.Sprintf("Document '%s' not found", nf.ID)
		case "block":
			return fmt.Sprintf("Block '%s' not found", nf.ID)
		}
		return nf.Error()
	}

	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return "Validation error: " + ve.Reason
	case errors.Is(err, ErrValidation):
		return "Validation error: " + err.Error()
	case errors.Is(err, ErrTimeout):
		return "Render timed out: " + err.Error()
	case errors.Is(err, ErrUnavailable):
		return "Render worker unavailable: " + err.Error()
	case errors.Is(err, ErrRenderWorker):
		return "Render failed: " + err.Error()
	case errors.Is(err, ErrSource):
		return "Query failed: " + err.Error()
	case errors.Is(err, ErrSerialization):
		return "Invalid data: " + err.Error()
	case errors.Is(err, ErrIO):
		return "File error: " + err.Error()
	}
	return "An unexpected error occurred"
}
