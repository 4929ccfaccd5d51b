package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeAnnotator struct {
	requests []*visionpb.BatchAnnotateImagesRequest
	resp     *visionpb.BatchAnnotateImagesResponse
	err      error
	closed   bool
}

func (f *fakeAnnotator) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func (f *fakeAnnotator) Close() error {
	f.closed = true
	return nil
}

func helloResponse() *visionpb.BatchAnnotateImagesResponse {
	return &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{
			{
				FullTextAnnotation: &visionpb.TextAnnotation{
					Text: "HELLO",
					Pages: []*visionpb.Page{
						{Width: 640, Height: 480, Confidence: 0.98},
					},
				},
				TextAnnotations: []*visionpb.EntityAnnotation{
					{Description: "HELLO", Locale: "en"},
				},
			},
		},
	}
}

func TestGoogleVisionDetector_DetectDocumentText(t *testing.T) {
	fake := &fakeAnnotator{resp: helloResponse()}
	detector := newGoogleVisionDetector(fake, Options{LanguageHints: []string{"en", "de"}})

	result, err := detector.DetectDocumentText(context.Background(), &Image{Ref: "sample.jpg", Content: []byte("jpeg-bytes")})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(result, &decoded))
	full, ok := decoded["fullTextAnnotation"].(map[string]interface{})
	require.True(t, ok, "fullTextAnnotation missing: %s", result)
	assert.Equal(t, "HELLO", full["text"])
	assert.Len(t, decoded["textAnnotations"], 1)

	require.Len(t, fake.requests, 1)
	require.Len(t, fake.requests[0].Requests, 1)
	req := fake.requests[0].Requests[0]
	assert.Equal(t, []byte("jpeg-bytes"), req.GetImage().GetContent())
	assert.Nil(t, req.GetImage().GetSource())
	require.Len(t, req.GetFeatures(), 1)
	assert.Equal(t, visionpb.Feature_DOCUMENT_TEXT_DETECTION, req.GetFeatures()[0].GetType())
	assert.Equal(t, []string{"en", "de"}, req.GetImageContext().GetLanguageHints())
}

func TestGoogleVisionDetector_RemoteImage(t *testing.T) {
	fake := &fakeAnnotator{resp: helloResponse()}
	detector := newGoogleVisionDetector(fake, Options{})

	_, err := detector.DetectDocumentText(context.Background(), &Image{Ref: "gs://bucket/scan.png", URI: "gs://bucket/scan.png"})
	require.NoError(t, err)

	req := fake.requests[0].Requests[0]
	assert.Equal(t, "gs://bucket/scan.png", req.GetImage().GetSource().GetImageUri())
	assert.Empty(t, req.GetImage().GetContent())
	assert.Nil(t, req.GetImageContext())
}

func TestGoogleVisionDetector_EmitUnpopulated(t *testing.T) {
	fake := &fakeAnnotator{resp: helloResponse()}
	detector := newGoogleVisionDetector(fake, Options{EmitUnpopulated: true})

	result, err := detector.DetectDocumentText(context.Background(), &Image{Ref: "a.png", Content: []byte("x")})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Contains(t, decoded, "faceAnnotations")
	assert.Contains(t, decoded, "error")
}

func TestGoogleVisionDetector_Errors(t *testing.T) {
	tests := []struct {
		name    string
		resp    *visionpb.BatchAnnotateImagesResponse
		err     error
		wantErr error
	}{
		{
			name:    "empty response list",
			resp:    &visionpb.BatchAnnotateImagesResponse{},
			wantErr: ErrEmptyResponse,
		},
		{
			name: "per-image error status",
			resp: &visionpb.BatchAnnotateImagesResponse{
				Responses: []*visionpb.AnnotateImageResponse{
					{Error: &rpcstatus.Status{Code: int32(codes.InvalidArgument), Message: "Bad image data."}},
				},
			},
			wantErr: ErrInvalidImage,
		},
		{
			name:    "unauthenticated",
			err:     status.Error(codes.Unauthenticated, "invalid_grant"),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "permission denied",
			err:     status.Error(codes.PermissionDenied, "Cloud Vision API has not been used"),
			wantErr: ErrPermissionDenied,
		},
		{
			name:    "quota",
			err:     status.Error(codes.ResourceExhausted, "quota exceeded"),
			wantErr: ErrQuotaExceeded,
		},
		{
			name:    "unavailable",
			err:     status.Error(codes.Unavailable, "connection reset"),
			wantErr: ErrOCRFailed,
		},
		{
			name:    "deadline",
			err:     context.DeadlineExceeded,
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAnnotator{resp: tt.resp, err: tt.err}
			detector := newGoogleVisionDetector(fake, Options{})

			result, err := detector.DetectDocumentText(context.Background(), &Image{Ref: "a.png", Content: []byte("x")})
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var ocrErr *OCRError
			assert.True(t, errors.As(err, &ocrErr))
			assert.Equal(t, "DetectDocumentText", ocrErr.Op)
		})
	}
}

func TestGoogleVisionDetector_NoImage(t *testing.T) {
	fake := &fakeAnnotator{resp: helloResponse()}
	detector := newGoogleVisionDetector(fake, Options{})

	_, err := detector.DetectDocumentText(context.Background(), &Image{Ref: "a.png"})
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Empty(t, fake.requests)
}

func TestGoogleVisionDetector_Close(t *testing.T) {
	fake := &fakeAnnotator{}
	detector := newGoogleVisionDetector(fake, Options{})

	require.NoError(t, detector.Close())
	assert.True(t, fake.closed)
}

func TestCredentialOptions(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	assert.Empty(t, credentialOptions())

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/tmp/sa.json")
	assert.Len(t, credentialOptions(), 1)

	t.Setenv("GOOGLE_CREDENTIALS", `{"type":"service_account"}`)
	assert.Len(t, credentialOptions(), 1)
}

func TestNewDetector_UnknownEngine(t *testing.T) {
	detector, err := NewDetector(context.Background(), Options{Engine: "tesseract"})
	assert.Nil(t, detector)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
