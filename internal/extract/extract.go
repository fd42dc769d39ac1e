// Package extract turns uploaded documents into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions with no extractor
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ExtractionError reports a document that could not be read or parsed
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Supported extensions, lower case with the leading dot
var (
	TextExtensions = []string{".txt", ".md"}
	PDFExtensions  = []string{".pdf"}
	HTMLExtensions = []string{".html", ".htm"}
)

// Extract reads the file at path and returns its text
func Extract(path string) (string, error) {
	if !Supported(path) {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	return ExtractReader(path, f)
}

// ExtractReader extracts text from r, choosing the format from name's extension
func ExtractReader(name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))

	data, err := io.ReadAll(r)
	if err != nil {
		return "", &ExtractionError{Path: name, Err: err}
	}

	switch {
	case contains(TextExtensions, ext):
		return decodeText(data), nil

	case contains(PDFExtensions, ext):
		text, err := pdfText(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return "", &ExtractionError{Path: name, Err: err}
		}
		return text, nil

	case contains(HTMLExtensions, ext):
		text, err := htmlText(bytes.NewReader(data))
		if err != nil {
			return "", &ExtractionError{Path: name, Err: err}
		}
		return text, nil

	default:
		return "", fmt.Errorf("%s: %w", filepath.Base(name), ErrUnsupportedFormat)
	}
}

// Supported reports whether path has an extension Extract can handle
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return contains(TextExtensions, ext) || contains(PDFExtensions, ext) || contains(HTMLExtensions, ext)
}

// ListFiles returns the regular files in dir whose extension is one of exts,
// sorted by name. Subdirectories are not descended.
func ListFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if len(exts) > 0 && !contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}

	sort.Strings(files)
	return files, nil
}

// decodeText drops invalid UTF-8 sequences instead of failing
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
