package ocr

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Common text detection errors
var (
	// ErrImageNotFound is returned when the image path does not exist.
	ErrImageNotFound = errors.New("image file not found")

	// ErrImageTooLarge is returned when the image exceeds the maximum request size.
	ErrImageTooLarge = errors.New("image file size exceeds the maximum limit (20MB)")

	// ErrInvalidImage is returned when the input is not something the service can annotate.
	ErrInvalidImage = errors.New("invalid or unreadable image")

	// ErrUnsupportedSource is returned when a remote URI scheme is not supported by the engine.
	ErrUnsupportedSource = errors.New("unsupported image source")

	// ErrOCRFailed is returned when the detection service fails to process the image.
	ErrOCRFailed = errors.New("text detection failed")

	// ErrEmptyResponse is returned when the service answers without an annotation result.
	ErrEmptyResponse = errors.New("detection service returned no result")

	// ErrMissingCredentials is returned when no Google Cloud credentials can be found.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrInvalidCredentials is returned when the service rejects the credentials.
	ErrInvalidCredentials = errors.New("invalid Google Cloud credentials")

	// ErrPermissionDenied is returned when the credentials lack the required role.
	ErrPermissionDenied = errors.New("permission denied by detection service")

	// ErrQuotaExceeded is returned when the project's API quota is exhausted.
	ErrQuotaExceeded = errors.New("detection service quota exceeded")

	// ErrInvalidConfiguration is returned when detector options are incomplete or unknown.
	ErrInvalidConfiguration = errors.New("invalid detector configuration")
)

// OCRError wraps errors with additional context about the detection failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "DetectDocumentText", "LoadImage").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}

// classifyRPCError maps a gRPC failure from a Google API onto the package's sentinel errors.
func classifyRPCError(op, service string, err error) error {
	details := fmt.Sprintf("%s call failed: %v", service, err)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return WrapOCRError(op, context.DeadlineExceeded, details)
	case errors.Is(err, context.Canceled):
		return WrapOCRError(op, context.Canceled, details)
	}

	switch status.Code(err) {
	case codes.Unauthenticated:
		return WrapOCRError(op, ErrInvalidCredentials, details)
	case codes.PermissionDenied:
		return WrapOCRError(op, ErrPermissionDenied, details)
	case codes.ResourceExhausted:
		return WrapOCRError(op, ErrQuotaExceeded, details)
	case codes.InvalidArgument:
		return WrapOCRError(op, ErrInvalidImage, details)
	case codes.DeadlineExceeded:
		return WrapOCRError(op, context.DeadlineExceeded, details)
	case codes.Canceled:
		return WrapOCRError(op, context.Canceled, details)
	default:
		return WrapOCRError(op, ErrOCRFailed, details)
	}
}
