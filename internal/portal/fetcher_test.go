package portal

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamolinav/ai-assist-attorney/models"
)

func TestFetchDownloadsDocument(t *testing.T) {
	var gotToken, gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotToken = r.PostFormValue("dtaDoc")
		if c, err := r.Cookie("PHPSESSID"); err == nil {
			gotCookie = c.Value
		}
		w.Write([]byte("%PDF-1.4 contenido"))
	}))
	defer server.Close()

	fetcher := NewDocumentFetcher([]*http.Cookie{{Name: "PHPSESSID", Value: "sess42"}})
	dest := t.TempDir()

	row := models.DetailRow{Folio: "12", DocURL: server.URL + "/doc.php", DocToken: "tok123"}
	path, err := fetcher.Fetch(row, 0, dest)
	require.NoError(t, err)

	assert.Equal(t, "tok123", gotToken)
	assert.Equal(t, "sess42", gotCookie)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 contenido", string(data))
	assert.Contains(t, path, "12_0.pdf")
}

func TestFetchRejectsRowWithoutDocument(t *testing.T) {
	fetcher := NewDocumentFetcher(nil)
	_, err := fetcher.Fetch(models.DetailRow{Folio: "9"}, 0, t.TempDir())
	assert.Error(t, err)
}

func TestFetchNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	fetcher := NewDocumentFetcher(nil)
	row := models.DetailRow{Folio: "1", DocURL: server.URL, DocToken: "tok"}
	_, err := fetcher.Fetch(row, 0, t.TempDir())
	assert.ErrorContains(t, err, "status 403")
}

func TestFolioName(t *testing.T) {
	assert.Equal(t, "12", folioName(" 12 "))
	assert.Equal(t, "3-a", folioName("[3/a]"))
	assert.Equal(t, "folio_12", folioName("folio 12"))
	assert.Equal(t, "doc", folioName("  "))
}
