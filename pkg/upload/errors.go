package upload

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Use errors.Is to classify an error returned by the Service;
// errors.Cause or errors.Unwrap yields the underlying failure.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrTransferFailed    = errors.New("upload failed")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrNotFound          = errors.New("not found")
	ErrCancelled         = errors.New("upload cancelled")
)

type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	switch {
	case e.msg != "":
		return e.msg
	case e.cause != nil:
		return fmt.Sprintf("%s: %s", e.kind, e.cause)
	default:
		return e.kind.Error()
	}
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func (e *kindError) Cause() error {
	return e.cause
}

func invalidInput(format string, args ...interface{}) error {
	return &kindError{kind: ErrInvalidInput, msg: fmt.Sprintf(format, args...)}
}

func transferFailed(cause error) error {
	return &kindError{kind: ErrTransferFailed, cause: cause}
}

func persistenceFailed(cause error) error {
	return &kindError{kind: ErrPersistenceFailed, cause: cause}
}

func cancelled(uploadID string) error {
	return &kindError{kind: ErrCancelled, msg: fmt.Sprintf("upload %s cancelled", uploadID)}
}

func notFound(uploadID string) error {
	return &kindError{kind: ErrNotFound, msg: fmt.Sprintf("upload %s not found", uploadID)}
}
