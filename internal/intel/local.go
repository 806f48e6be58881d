package intel

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var collapsedWhitespace = regexp.MustCompile(`[ \t]+`)

// LoadLocalReport reads a report from disk for offline review. Markdown and
// plain-text files pass through verbatim; PDFs are reduced to plain text,
// which segmentation then treats as a headingless document unless the
// extraction preserved markdown-style headings.
func LoadLocalReport(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDFText(path)
	case ".md", ".markdown", ".txt", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported report file type: %s", filepath.Ext(path))
	}
}

func extractPDFText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var builder strings.Builder
	if _, err := io.Copy(&builder, content); err != nil {
		return "", err
	}
	return strings.TrimSpace(collapsedWhitespace.ReplaceAllString(builder.String(), " ")), nil
}
