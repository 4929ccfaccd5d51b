// Package ocr provides document text detection using Google Cloud services.
//
// The detectors send one image per call and return the service's annotation
// result as an opaque JSON document. Nothing in the payload is inspected; the
// caller persists it verbatim.
//
// Credentials are resolved from the environment:
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string, OR
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file
//   - Otherwise Application Default Credentials are used
//
// Supported engines:
//   - vision: Cloud Vision DOCUMENT_TEXT_DETECTION (pages, blocks, paragraphs, words, symbols)
//   - documentai: Document AI OCR processor (requires project and processor ID)
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	// EngineVision selects the Cloud Vision backend.
	EngineVision = "vision"

	// EngineDocumentAI selects the Document AI backend.
	EngineDocumentAI = "documentai"
)

// TextDetector defines the interface for document text detection services.
type TextDetector interface {
	// DetectDocumentText runs document text detection on a single image.
	// Returns the service's annotation result serialized as JSON.
	DetectDocumentText(ctx context.Context, img *Image) (DetectionResult, error)

	// Close releases the underlying client connection.
	Close() error
}

// DetectionResult is the annotation payload returned by the detection service.
// It is kept as raw JSON and forwarded without decoding.
type DetectionResult json.RawMessage

// MarshalJSON returns the payload unchanged.
func (r DetectionResult) MarshalJSON() ([]byte, error) {
	return json.RawMessage(r).MarshalJSON()
}

// Options configures a TextDetector.
type Options struct {
	// Engine is EngineVision or EngineDocumentAI. Empty means EngineVision.
	Engine string

	// LanguageHints are BCP-47 codes passed to the service as an image context.
	LanguageHints []string

	// EmitUnpopulated includes zero-valued proto fields in the JSON output.
	EmitUnpopulated bool

	// Endpoint overrides the Cloud Vision endpoint (host:port). Document AI
	// derives its endpoint from Location instead.
	Endpoint string

	// QuotaProject is billed for Vision requests when set.
	QuotaProject string

	// Document AI processor coordinates.
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
}

// NewDetector creates the TextDetector selected by opts.Engine.
func NewDetector(ctx context.Context, opts Options) (TextDetector, error) {
	switch opts.Engine {
	case EngineVision, "":
		return NewGoogleVisionDetector(ctx, opts)
	case EngineDocumentAI:
		return NewDocumentAIDetector(ctx, opts)
	default:
		return nil, WrapOCRError("NewDetector", ErrInvalidConfiguration, fmt.Sprintf("unknown engine %q", opts.Engine))
	}
}
