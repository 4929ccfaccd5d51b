package ocr

import (
	"context"
	"fmt"
	"os"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"textdetect/internal/logger"
)

// imageAnnotator is the subset of vision.ImageAnnotatorClient used by the detector.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// noRetry disables the client library's default retry policy: each request is a single attempt.
var noRetry = gax.WithRetry(func() gax.Retryer { return nil })

// GoogleVisionDetector implements TextDetector using Google Cloud Vision API.
type GoogleVisionDetector struct {
	client        imageAnnotator
	languageHints []string
	marshal       protojson.MarshalOptions
	log           zerolog.Logger
}

// NewGoogleVisionDetector creates a Vision detector with credentials from environment.
// It expects either GOOGLE_CREDENTIALS JSON or GOOGLE_APPLICATION_CREDENTIALS path in env,
// and falls back to Application Default Credentials.
func NewGoogleVisionDetector(ctx context.Context, opts Options) (TextDetector, error) {
	const op = "NewGoogleVisionDetector"

	clientOptions := credentialOptions()
	hasCredentials := len(clientOptions) > 0

	if opts.Endpoint != "" {
		clientOptions = append(clientOptions, option.WithEndpoint(opts.Endpoint))
	}
	if opts.QuotaProject != "" {
		clientOptions = append(clientOptions, option.WithQuotaProject(opts.QuotaProject))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, clientOptions...)
	if err != nil {
		if !hasCredentials {
			return nil, WrapOCRError(op, ErrMissingCredentials, fmt.Sprintf("no credentials found in environment: %v", err))
		}
		return nil, WrapOCRError(op, ErrInvalidCredentials, fmt.Sprintf("failed to create Vision client: %v", err))
	}

	return newGoogleVisionDetector(client, opts), nil
}

func newGoogleVisionDetector(client imageAnnotator, opts Options) *GoogleVisionDetector {
	return &GoogleVisionDetector{
		client:        client,
		languageHints: opts.LanguageHints,
		marshal:       protojson.MarshalOptions{EmitUnpopulated: opts.EmitUnpopulated},
		log:           logger.WithComponent("vision"),
	}
}

// DetectDocumentText sends one DOCUMENT_TEXT_DETECTION request and returns the
// first (and only) annotation response as JSON.
func (g *GoogleVisionDetector) DetectDocumentText(ctx context.Context, img *Image) (DetectionResult, error) {
	const op = "DetectDocumentText"
	startTime := time.Now()

	if img == nil || (len(img.Content) == 0 && img.URI == "") {
		return nil, WrapOCRError(op, ErrInvalidImage, "no image content or URI")
	}

	request := &visionpb.AnnotateImageRequest{
		Image: visionImage(img),
		Features: []*visionpb.Feature{
			{
				Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
			},
		},
	}
	if len(g.languageHints) > 0 {
		request.ImageContext = &visionpb.ImageContext{
			LanguageHints: g.languageHints,
		}
	}

	g.log.Debug().
		Str("image", img.Ref).
		Bool("remote", img.IsRemote()).
		Strs("language_hints", g.languageHints).
		Msg("Calling Vision API")

	resp, err := g.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{request},
	}, noRetry)
	if err != nil {
		return nil, classifyRPCError(op, "Vision API", err)
	}

	if len(resp.GetResponses()) == 0 {
		return nil, WrapOCRError(op, ErrEmptyResponse, "no response from Vision API")
	}

	annotation := resp.GetResponses()[0]
	if annotation.GetError() != nil {
		if rpcErr := status.ErrorProto(annotation.GetError()); rpcErr != nil {
			return nil, classifyRPCError(op, "Vision API", rpcErr)
		}
	}

	result, err := marshalResult(g.marshal, annotation)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to serialize Vision API response")
	}

	g.log.Info().
		Str("image", img.Ref).
		Int("pages", len(annotation.GetFullTextAnnotation().GetPages())).
		Int("text_length", len(annotation.GetFullTextAnnotation().GetText())).
		Dur("duration", time.Since(startTime)).
		Msg("Text detection completed")

	return result, nil
}

// Close closes the underlying Vision client.
func (g *GoogleVisionDetector) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func visionImage(img *Image) *visionpb.Image {
	if img.IsRemote() {
		return &visionpb.Image{
			Source: &visionpb.ImageSource{
				ImageUri: img.URI,
			},
		}
	}
	return &visionpb.Image{
		Content: img.Content,
	}
}

// credentialOptions returns the client option for explicitly configured credentials.
// Inline JSON takes precedence over a credentials file; nil means Application Default Credentials.
func credentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

func marshalResult(opts protojson.MarshalOptions, msg proto.Message) (DetectionResult, error) {
	data, err := opts.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return DetectionResult(data), nil
}
