package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"

	"textdetect/internal/logger"
)

// documentProcessor is the subset of documentai.DocumentProcessorClient used by the detector.
type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIDetector implements TextDetector using a Document AI OCR processor.
type DocumentAIDetector struct {
	client  documentProcessor
	opts    Options
	marshal protojson.MarshalOptions
	log     zerolog.Logger
}

// NewDocumentAIDetector creates a detector backed by Document AI.
// Requires: ProjectID and ProcessorID. Location defaults to "us".
func NewDocumentAIDetector(ctx context.Context, opts Options) (TextDetector, error) {
	const op = "NewDocumentAIDetector"

	if opts.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required for the documentai engine")
	}
	if opts.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required for the documentai engine")
	}
	if opts.Location == "" {
		opts.Location = "us"
	}

	var clientOptions []option.ClientOption

	// Regional processors live behind a regional endpoint
	if opts.Location != "us" {
		clientOptions = append(clientOptions, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", opts.Location)))
	}

	credentials := credentialOptions()
	clientOptions = append(clientOptions, credentials...)

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(credentials) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, fmt.Sprintf("no credentials found in environment: %v", err))
		}
		return nil, WrapOCRError(op, ErrInvalidCredentials, fmt.Sprintf("failed to create Document AI client for location %s: %v", opts.Location, err))
	}

	return newDocumentAIDetector(client, opts), nil
}

func newDocumentAIDetector(client documentProcessor, opts Options) *DocumentAIDetector {
	if opts.Location == "" {
		opts.Location = "us"
	}
	return &DocumentAIDetector{
		client:  client,
		opts:    opts,
		marshal: protojson.MarshalOptions{EmitUnpopulated: opts.EmitUnpopulated},
		log:     logger.WithComponent("document-ai"),
	}
}

// DetectDocumentText processes the image with the configured OCR processor and
// returns the resulting Document as JSON.
func (d *DocumentAIDetector) DetectDocumentText(ctx context.Context, img *Image) (DetectionResult, error) {
	const op = "DetectDocumentText"
	startTime := time.Now()

	req, err := d.processRequest(img)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to build Document AI request")
	}

	d.log.Debug().
		Str("image", img.Ref).
		Str("processor", req.Name).
		Str("mime_type", img.MimeType).
		Msg("Calling Document AI")

	resp, err := d.client.ProcessDocument(ctx, req, noRetry)
	if err != nil {
		return nil, classifyRPCError(op, "Document AI", err)
	}

	if resp.GetDocument() == nil {
		return nil, WrapOCRError(op, ErrEmptyResponse, "no document in response")
	}

	result, err := marshalResult(d.marshal, resp.GetDocument())
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to serialize Document AI response")
	}

	d.log.Info().
		Str("image", img.Ref).
		Int("pages", len(resp.GetDocument().GetPages())).
		Int("text_length", len(resp.GetDocument().GetText())).
		Dur("duration", time.Since(startTime)).
		Msg("Text detection completed")

	return result, nil
}

func (d *DocumentAIDetector) processRequest(img *Image) (*documentaipb.ProcessRequest, error) {
	if img == nil || (len(img.Content) == 0 && img.URI == "") {
		return nil, ErrInvalidImage
	}
	if img.MimeType == "" || img.MimeType == "application/octet-stream" {
		return nil, fmt.Errorf("%w: cannot determine MIME type of %s", ErrInvalidImage, img.Ref)
	}

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
	}
	if len(d.opts.LanguageHints) > 0 {
		req.ProcessOptions = &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{
					LanguageHints: d.opts.LanguageHints,
				},
			},
		}
	}

	if img.IsRemote() {
		if !strings.HasPrefix(strings.ToLower(img.URI), "gs://") {
			return nil, fmt.Errorf("%w: Document AI only reads gs:// URIs, got %s", ErrUnsupportedSource, img.URI)
		}
		req.Source = &documentaipb.ProcessRequest_GcsDocument{
			GcsDocument: &documentaipb.GcsDocument{
				GcsUri:   img.URI,
				MimeType: img.MimeType,
			},
		}
		return req, nil
	}

	req.Source = &documentaipb.ProcessRequest_RawDocument{
		RawDocument: &documentaipb.RawDocument{
			Content:  img.Content,
			MimeType: img.MimeType,
		},
	}
	return req, nil
}

// processorName constructs the full processor name for Document AI API.
func (d *DocumentAIDetector) processorName() string {
	if d.opts.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			d.opts.ProjectID, d.opts.Location, d.opts.ProcessorID, d.opts.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.opts.ProjectID, d.opts.Location, d.opts.ProcessorID)
}

// Close closes the underlying Document AI client.
func (d *DocumentAIDetector) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
