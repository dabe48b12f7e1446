package casestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "causa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedChunks(t *testing.T, store *Store, contents []string, vectors [][]float32) {
	t.Helper()
	docID, err := store.InsertDocument("folio_1.pdf", "")
	require.NoError(t, err)
	for i, content := range contents {
		require.NoError(t, store.InsertChunk(docID, i, content, vectors[i]))
	}
}

func staticEmbed(vec []float32) EmbedQueryFunc {
	return func(ctx context.Context, query string) ([]float32, error) {
		return vec, nil
	}
}

func TestInsertAndCount(t *testing.T) {
	store := newTestStore(t)
	seedChunks(t, store,
		[]string{"demanda ejecutiva de cobro", "notificación al demandado"},
		[][]float32{{1, 0}, {0, 1}})

	n, err := store.ChunkCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHybridSearchRanksByCosine(t *testing.T) {
	store := newTestStore(t)
	seedChunks(t, store,
		[]string{
			"el tribunal ordena el embargo de bienes",
			"el tribunal fija audiencia de conciliación",
			"el tribunal rechaza la excepción",
		},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}})

	// Query vector points at the first chunk's direction.
	results, err := store.HybridSearch(context.Background(), "tribunal",
		staticEmbed([]float32{1, 0, 0}), 40, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "el tribunal ordena el embargo de bienes", results[0].Content)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestHybridSearchRespectsRerankK(t *testing.T) {
	store := newTestStore(t)
	contents := make([]string, 10)
	vectors := make([][]float32, 10)
	for i := range contents {
		contents[i] = "resolución del tribunal sobre el cuaderno principal"
		vectors[i] = []float32{float32(i), 1}
	}
	seedChunks(t, store, contents, vectors)

	results, err := store.HybridSearch(context.Background(), "resolución",
		staticEmbed([]float32{1, 1}), 40, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestHybridSearchNoMatch(t *testing.T) {
	store := newTestStore(t)
	seedChunks(t, store, []string{"demanda ejecutiva"}, [][]float32{{1}})

	results, err := store.HybridSearch(context.Background(), "inexistente",
		staticEmbed([]float32{1}), 40, 8)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridSearchPunctuationDegrades(t *testing.T) {
	// Raw FTS5 rejects this query, so matching must fall through the
	// sanitizing ladder instead of returning an error.
	store := newTestStore(t)
	seedChunks(t, store, []string{"recurso de apelación contra la sentencia"}, [][]float32{{1}})

	results, err := store.HybridSearch(context.Background(), `¿apelación? (sentencia)`,
		staticEmbed([]float32{1}), 40, 8)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "recurso de apelación contra la sentencia", results[0].Content)
}

func TestHybridSearchEmbedFailureKeepsLexicalOrder(t *testing.T) {
	store := newTestStore(t)
	seedChunks(t, store,
		[]string{"pagare protestado por el banco", "el banco acompaña el pagare"},
		[][]float32{{1, 0}, {0, 1}})

	failing := func(ctx context.Context, query string) ([]float32, error) {
		return nil, assert.AnError
	}
	results, err := store.HybridSearch(context.Background(), "pagare", failing, 40, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "qué dice la sentencia", Sanitize(`¿qué dice la "sentencia"?`))
	assert.Equal(t, "", Sanitize("¿?¡!..."))
}

func TestPrefixify(t *testing.T) {
	assert.Equal(t, `"embargo"* "bienes"*`, Prefixify("embargo, bienes."))
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.14159, 0}
	assert.Equal(t, vec, bytesToFloat32Slice(float32SliceToBytes(vec)))
}
