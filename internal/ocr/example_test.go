package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"textdetect/internal/ocr"
)

// Example demonstrates detecting text in a local image with Cloud Vision.
func Example() {
	// Credentials come from GOOGLE_CREDENTIALS, GOOGLE_APPLICATION_CREDENTIALS
	// or Application Default Credentials.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	detector, err := ocr.NewDetector(ctx, ocr.Options{Engine: ocr.EngineVision})
	if err != nil {
		log.Fatalf("Failed to create detector: %v", err)
	}
	defer detector.Close()

	img, err := ocr.LoadImage("receipt.jpg")
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}

	result, err := detector.DetectDocumentText(ctx, img)
	if err != nil {
		log.Fatalf("Failed to detect text: %v", err)
	}

	if err := os.WriteFile("receipt.json", result, 0644); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
}

// ExampleNewDetector_documentAI demonstrates the Document AI backend with language hints.
func ExampleNewDetector_documentAI() {
	ctx := context.Background()

	detector, err := ocr.NewDetector(ctx, ocr.Options{
		Engine:        ocr.EngineDocumentAI,
		ProjectID:     os.Getenv("GOOGLE_CLOUD_PROJECT"),
		Location:      "eu",
		ProcessorID:   os.Getenv("DOCUMENT_AI_PROCESSOR_ID"),
		LanguageHints: []string{"de"},
	})
	if err != nil {
		if errors.Is(err, ocr.ErrInvalidConfiguration) {
			log.Printf("Set GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID")
			return
		}
		log.Fatalf("Failed to create detector: %v", err)
	}
	defer detector.Close()

	img, err := ocr.LoadImage("gs://my-bucket/scans/page-01.png")
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}

	result, err := detector.DetectDocumentText(ctx, img)
	switch {
	case errors.Is(err, ocr.ErrQuotaExceeded):
		log.Printf("Quota exhausted, try again later")
	case err != nil:
		log.Fatalf("Failed to detect text: %v", err)
	default:
		fmt.Printf("%d bytes of annotations\n", len(result))
	}
}
