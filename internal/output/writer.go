// Package output persists detection results next to their input image.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrWriteFailed is returned when the result file cannot be written.
	ErrWriteFailed = errors.New("failed to write output file")

	// ErrInvalidJSON is returned when the result is not a valid JSON document.
	ErrInvalidJSON = errors.New("result is not valid JSON")
)

// DerivePath returns the JSON output path for an input image.
//
// The extension of the final path element, i.e. everything after its last ".",
// is replaced with "json". When the final element has no "." the whole path
// gets ".json" appended, so "scan" becomes "scan.json" and "v1.2/scan"
// becomes "v1.2/scan.json".
func DerivePath(input string) string {
	base := strings.LastIndexAny(input, `/\`) + 1
	dot := strings.LastIndex(input[base:], ".")
	if dot < 0 {
		return input + ".json"
	}
	return input[:base+dot+1] + "json"
}

// WriteJSON writes result to path as compact JSON, replacing any existing file.
// The data goes to a temporary file in the same directory first, so a failed
// write never leaves a truncated file at path.
func WriteJSON(path string, result []byte) (err error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, result); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(compact.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err = tmp.Chmod(0644); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	return nil
}
