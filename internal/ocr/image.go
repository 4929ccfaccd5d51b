package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"textdetect/internal/logger"
)

// MaxFileSizeBytes is the maximum inline image size accepted for a single request (20MB)
const MaxFileSizeBytes = 20 * 1024 * 1024

var remoteSchemes = []string{"gs://", "http://", "https://"}

// Image is a single input for text detection. Exactly one of Content or URI is set.
type Image struct {
	// Ref is the path or URI as given on the command line.
	Ref string

	// Content holds the file bytes for local images.
	Content []byte

	// URI references a remote image (gs:// or http(s)://) that the service fetches itself.
	URI string

	// MimeType is sniffed from the content, or guessed from the extension.
	MimeType string

	// Format, Width and Height come from decoding the image header. They are
	// informational only and stay empty when the format is not recognised locally.
	Format string
	Width  int
	Height int
}

// IsRemote reports whether the image is referenced by URI.
func (i *Image) IsRemote() bool {
	return i.URI != ""
}

// IsRemoteRef reports whether ref names a remote image rather than a local file.
func IsRemoteRef(ref string) bool {
	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(strings.ToLower(ref), scheme) {
			return true
		}
	}
	return false
}

// LoadImage resolves ref into an Image. Local files are validated and read;
// remote URIs are passed through for the service to fetch.
func LoadImage(ref string) (*Image, error) {
	const op = "LoadImage"
	log := logger.WithComponent("image")

	if ref == "" {
		return nil, WrapOCRError(op, ErrInvalidImage, "empty image path")
	}

	if IsRemoteRef(ref) {
		return &Image{
			Ref:      ref,
			URI:      ref,
			MimeType: mime.TypeByExtension(strings.ToLower(path.Ext(ref))),
		}, nil
	}

	fileInfo, err := os.Stat(ref)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, WrapOCRError(op, ErrImageNotFound, ref)
		}
		if os.IsPermission(err) {
			return nil, WrapOCRError(op, ErrInvalidImage, fmt.Sprintf("permission denied accessing %s", ref))
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("error accessing %s", ref))
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, WrapOCRError(op, ErrInvalidImage, fmt.Sprintf("not a regular file: %s", ref))
	}
	if fileInfo.Size() == 0 {
		return nil, WrapOCRError(op, ErrInvalidImage, fmt.Sprintf("file is empty: %s", ref))
	}
	if fileInfo.Size() > MaxFileSizeBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("file size: %d bytes", fileInfo.Size()))
	}

	content, err := os.ReadFile(ref)
	if err != nil {
		return nil, WrapOCRError(op, ErrInvalidImage, fmt.Sprintf("failed to read %s: %v", ref, err))
	}

	img := &Image{
		Ref:      ref,
		Content:  content,
		MimeType: sniffMimeType(ref, content),
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		log.Warn().
			Err(err).
			Str("file", ref).
			Str("mime_type", img.MimeType).
			Msg("Image format not recognised locally, sending as-is")
		return img, nil
	}

	img.Format = format
	img.Width = cfg.Width
	img.Height = cfg.Height

	log.Debug().
		Str("file", ref).
		Str("format", format).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Int("bytes", len(content)).
		Msg("Image loaded")

	return img, nil
}

func sniffMimeType(ref string, content []byte) string {
	if detected := http.DetectContentType(content); detected != "application/octet-stream" {
		// Drop parameters such as "; charset=utf-8"
		if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
			return mediaType
		}
		return detected
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(ref))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
