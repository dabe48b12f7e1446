package portal

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamolinav/ai-assist-attorney/models"
)

// DocumentFetcher downloads case documents over plain HTTP, replaying
// the browser session's cookies. The portal hands out documents only to
// the session that ran the search.
type DocumentFetcher struct {
	client  *http.Client
	cookies []*http.Cookie
}

func NewDocumentFetcher(cookies []*http.Cookie) *DocumentFetcher {
	return &DocumentFetcher{
		client:  &http.Client{Timeout: 60 * time.Second},
		cookies: cookies,
	}
}

// Fetch POSTs the row's dtaDoc token to its form action and writes the
// response to destDir as <folio>_<idx>.pdf. Returns the saved path.
func (f *DocumentFetcher) Fetch(row models.DetailRow, idx int, destDir string) (string, error) {
	if !row.HasDocument() {
		return "", fmt.Errorf("row %q has no document", row.Folio)
	}

	form := url.Values{"dtaDoc": {row.DocToken}}
	req, err := http.NewRequest(http.MethodPost, row.DocURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	for _, c := range f.cookies {
		req.AddCookie(c)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("document download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document download returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	path := filepath.Join(destDir, fmt.Sprintf("%s_%d.pdf", folioName(row.Folio), idx))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create document file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	return path, nil
}

// folioName makes the folio filesystem-safe. Empty folios fall back to
// "doc"; the index keeps names unique either way.
func folioName(folio string) string {
	name := strings.NewReplacer("[", "", "]", "", "/", "-", " ", "_").Replace(strings.TrimSpace(folio))
	if name == "" {
		return "doc"
	}
	return name
}
