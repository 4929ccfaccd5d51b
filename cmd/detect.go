package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"textdetect/internal/config"
	"textdetect/internal/logger"
	"textdetect/internal/ocr"
	"textdetect/internal/output"
)

func runDetect(cmd *cobra.Command, args []string, cfg *config.Config, factory DetectorFactory) error {
	log := logger.WithComponent("detect")
	out := cmd.OutOrStdout()

	// Get flags
	outputPath, _ := cmd.Flags().GetString("output")
	engine, _ := cmd.Flags().GetString("engine")
	languageHints, _ := cmd.Flags().GetStringSlice("language-hints")
	emitDefaults, _ := cmd.Flags().GetBool("emit-defaults")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if timeoutSecs < 0 {
		return fmt.Errorf("--timeout must not be negative, got %d", timeoutSecs)
	}

	inputPath := args[0]
	if outputPath == "" {
		outputPath = derivedOutputPath(inputPath)
	}

	fmt.Fprintf(out, "Input filename: %s\n", inputPath)
	fmt.Fprintf(out, "Output filename: %s\n", outputPath)

	opts := ocr.Options{}
	if cfg != nil {
		opts = cfg.DetectorOptions()
	}
	if engine != "" {
		opts.Engine = engine
	}
	opts.LanguageHints = languageHints
	opts.EmitUnpopulated = emitDefaults

	log.Info().
		Str("input", inputPath).
		Str("output", outputPath).
		Str("engine", opts.Engine).
		Strs("language_hints", languageHints).
		Int("timeout", timeoutSecs).
		Msg("Starting text detection")

	img, err := ocr.LoadImage(inputPath)
	if err != nil {
		return handleDetectionError(err, log)
	}

	ctx, cancel := createContext(cmd.Context(), timeoutSecs, log)
	defer cancel()

	detector, err := factory(ctx, opts)
	if err != nil {
		return handleDetectionError(err, log)
	}
	defer func() {
		if closeErr := detector.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close detection client")
		}
	}()

	fmt.Fprintln(out, "Detecting text...")

	startTime := time.Now()
	result, err := detector.DetectDocumentText(ctx, img)
	if err != nil {
		return handleDetectionError(err, log)
	}

	if err := output.WriteJSON(outputPath, result); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file %s: %w", outputPath, err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(result)).
		Dur("duration", time.Since(startTime)).
		Msg("Detection results written to file")

	fmt.Fprintln(out, "Detection results are written to the output file.")
	return nil
}

// derivedOutputPath names the result file after the input. Remote images are
// written to the current directory under their object name.
func derivedOutputPath(inputPath string) string {
	if !ocr.IsRemoteRef(inputPath) {
		return output.DerivePath(inputPath)
	}

	name := "result"
	if u, err := url.Parse(inputPath); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			name = base
		}
	}
	return output.DerivePath(name)
}

// createContext derives the request context, canceled on SIGINT/SIGTERM and,
// when timeoutSecs is positive, after the timeout.
func createContext(parent context.Context, timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeoutSecs <= 0 {
		return ctx, stop
	}

	log.Debug().Int("timeout", timeoutSecs).Msg("Request deadline set")
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	return timeoutCtx, func() {
		cancel()
		stop()
	}
}

// handleDetectionError provides user-friendly error messages for detection failures
func handleDetectionError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Text detection failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("text detection timed out, try increasing --timeout: %w", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("text detection was canceled: %w", err)
	case errors.Is(err, ocr.ErrImageNotFound):
		return fmt.Errorf("image file not found: %w", err)
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB), try resizing it or upload it to Cloud Storage and pass a gs:// URI: %w", err)
	case errors.Is(err, ocr.ErrInvalidImage):
		return fmt.Errorf("the image could not be processed, check that the file is a supported image format: %w", err)
	case errors.Is(err, ocr.ErrUnsupportedSource):
		return fmt.Errorf("this engine cannot read the given image location: %w", err)
	case errors.Is(err, ocr.ErrMissingCredentials), errors.Is(err, ocr.ErrInvalidCredentials):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials:\n\n"+
			"1. Set GOOGLE_APPLICATION_CREDENTIALS to your service account JSON file path:\n"+
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n"+
			"2. Or set GOOGLE_CREDENTIALS with inline JSON:\n"+
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n"+
			"3. If using Application Default Credentials, run:\n"+
			"   gcloud auth application-default login\n\n"+
			"Original error: %w", err)
	case errors.Is(err, ocr.ErrPermissionDenied):
		return fmt.Errorf("permission denied, ensure the service account has the 'Cloud Vision API User' role and the API is enabled: %w", err)
	case errors.Is(err, ocr.ErrQuotaExceeded):
		return fmt.Errorf("API quota exceeded, check your project quotas in the Google Cloud Console: %w", err)
	case errors.Is(err, ocr.ErrInvalidConfiguration):
		return fmt.Errorf("invalid detector configuration: %w", err)
	case errors.Is(err, ocr.ErrEmptyResponse), errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("text detection failed, this may be due to network issues or service unavailability: %w", err)
	default:
		return fmt.Errorf("text detection failed: %w", err)
	}
}
