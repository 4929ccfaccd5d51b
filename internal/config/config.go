package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"textdetect/internal/logger"
	"textdetect/internal/ocr"
)

type Config struct {
	// Detection Configuration
	DetectionEngine string
	VisionEndpoint  string

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		DetectionEngine:            getEnv("TEXT_DETECTION_ENGINE", ocr.EngineVision),
		VisionEndpoint:             getEnv("VISION_ENDPOINT", ""),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.DetectionEngine {
	case ocr.EngineVision, ocr.EngineDocumentAI:
	default:
		return fmt.Errorf("TEXT_DETECTION_ENGINE must be %q or %q, got %q",
			ocr.EngineVision, ocr.EngineDocumentAI, c.DetectionEngine)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// DetectorOptions returns the detection client options derived from the environment.
// Command-line flags are layered on top by the caller.
func (c *Config) DetectorOptions() ocr.Options {
	return ocr.Options{
		Engine:           c.DetectionEngine,
		Endpoint:         c.VisionEndpoint,
		QuotaProject:     c.GoogleCloudProject,
		ProjectID:        c.GoogleCloudProject,
		Location:         c.GoogleCloudLocation,
		ProcessorID:      c.DocumentAIProcessorID,
		ProcessorVersion: c.DocumentAIProcessorVersion,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
