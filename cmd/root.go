package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"textdetect/internal/config"
	"textdetect/internal/logger"
	"textdetect/internal/ocr"
)

var version = "1.0.0"

// ErrInvalidArguments is returned when the command is not given exactly one image.
var ErrInvalidArguments = errors.New("Invalid arguments!\nCorrect arguments: <imageFilename>")

// DetectorFactory creates the text detection client used for a run.
type DetectorFactory func(ctx context.Context, opts ocr.Options) (ocr.TextDetector, error)

func newRootCmd(cfg *config.Config, factory DetectorFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "textdetect <imageFilename>",
		Short: "Detect document text in an image using Google Cloud Vision",
		Long: `Send an image to Google Cloud Vision document text detection and write the
full annotation result (pages, blocks, paragraphs, words, symbols, bounding
boxes and confidences) as JSON next to the input.

The output file name is the input name with its extension replaced by .json.
A gs:// or http(s):// URI may be given instead of a local path; the service
then fetches the image itself and the result is written to the current
directory.

Credentials are taken from the environment:
  GOOGLE_CREDENTIALS - Inline JSON credentials string, OR
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  Application Default Credentials (gcloud auth application-default login)`,
		Example: `  # Writes scan.json next to scan.png
  textdetect scan.png

  # Hint the expected languages and choose the output path
  textdetect receipt.jpg --language-hints de,en -o out/receipt.json

  # Use a Document AI OCR processor instead of Cloud Vision
  textdetect --engine documentai page.tiff`,
		Version:       version,
		Args:          exactlyOneImage,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, cfg, factory)
		},
	}

	rootCmd.Flags().StringP("output", "o", "", "Output file path (default: input path with .json extension)")
	rootCmd.Flags().String("engine", "", "Detection engine: vision or documentai (default: TEXT_DETECTION_ENGINE or vision)")
	rootCmd.Flags().StringSlice("language-hints", nil, "Comma separated BCP-47 language hints, e.g. en,de")
	rootCmd.Flags().Bool("emit-defaults", false, "Include unpopulated fields in the JSON result")
	rootCmd.Flags().Int("timeout", 0, "Request timeout in seconds (0 waits until the service responds)")

	return rootCmd
}

func exactlyOneImage(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return ErrInvalidArguments
	}
	return nil
}

func Execute(cfg *config.Config) {
	log := logger.WithComponent("cmd")

	if err := newRootCmd(cfg, ocr.NewDetector).Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
