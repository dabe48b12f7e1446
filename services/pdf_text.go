package services

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jamolinav/ai-assist-attorney/internal/logger"
)

// ExtractPDFText pulls the plain text out of a PDF file. Pages that fail
// to decode are skipped with a warning; only a file that cannot be opened
// at all is an error. Scanned pages with no text layer come back empty,
// which the caller treats as a skippable document.
func ExtractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract page text", "path", path, "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}

	return strings.Join(pages, "\n\n"), nil
}
