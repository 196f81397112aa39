package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes surfaced to hosts.
const (
	CodeStructuredParse     = "STRUCTURED_PARSE_FAILURE"
	CodeStructuredTransport = "STRUCTURED_TRANSPORT_ERROR"
	CodeOCRUnavailable      = "OCR_SERVICE_UNAVAILABLE"
	CodeTaggingUnavailable  = "TAGGING_SERVICE_UNAVAILABLE"
	CodeDocumentUnreadable  = "DOCUMENT_UNREADABLE"
	CodeReconciliation      = "RECONCILIATION_FAILURE"
	CodeTagging             = "TAGGING_FAILURE"
	CodeInvalidDocument     = "INVALID_DOCUMENT"
	CodeRunCanceled         = "RUN_CANCELED"
	CodeConfig              = "CONFIG_ERROR"
	CodeDatabase            = "DATABASE_ERROR"
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")

	// ErrStructuredParse means the document carries no usable structured invoice
	// payload. It is an expected outcome, never retried.
	ErrStructuredParse = errors.New("no structured invoice payload")
	// ErrServiceUnavailable means an outbound call kept failing at the transport
	// level until the retry budget ran out.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrUnprocessable is a definitive "cannot read this document" answer.
	ErrUnprocessable  = errors.New("document unprocessable")
	ErrReconciliation = errors.New("reconciliation failed")
	ErrTagging        = errors.New("tagging failed")
	ErrCanceled       = errors.New("run canceled")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the code of the outermost AppError in the chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsTransient reports whether resubmitting the same document later may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrCanceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// IsPermanent reports failures that will repeat for the same input: the
// document is unreadable, reconciliation found nothing usable or the input
// itself is invalid.
func IsPermanent(err error) bool {
	if err == nil || IsTransient(err) {
		return false
	}
	return errors.Is(err, ErrUnprocessable) ||
		errors.Is(err, ErrReconciliation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrValidation)
}

// ToStatus maps pipeline errors onto gRPC status errors.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case IsTransient(err):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, ErrUnprocessable), errors.Is(err, ErrReconciliation):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return InternalError(err.Error())
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
