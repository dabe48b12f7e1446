package casestore

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/jamolinav/ai-assist-attorney/internal/logger"
)

// Result is one ranked chunk from a hybrid search.
type Result struct {
	ChunkID int64
	Content string
	Score   float64
}

// EmbedQueryFunc embeds a single query string for reranking.
type EmbedQueryFunc func(ctx context.Context, query string) ([]float32, error)

// ftsSafe matches everything outside the character set FTS5 accepts in a
// bare query term, including accented Spanish letters.
var ftsSafe = regexp.MustCompile(`[^0-9A-Za-zÁÉÍÓÚÜÑáéíóúüñ]+`)

// HybridSearch runs a lexical FTS pass capped at lexicalK candidates,
// then reranks them by cosine similarity against the embedded query and
// returns at most rerankK results, best first. Queries are retried
// through a sanitizing ladder (raw, stripped, prefix) because portal
// documents provoke users into punctuation-heavy questions that FTS5
// rejects. Search degrades to an empty result set rather than erroring.
func (s *Store) HybridSearch(ctx context.Context, query string, embed EmbedQueryFunc, lexicalK, rerankK int) ([]Result, error) {
	candidates := s.lexicalCandidates(ctx, query, lexicalK)
	if len(candidates) == 0 {
		return nil, nil
	}

	queryVec, err := embed(ctx, query)
	if err != nil {
		// Rerank is best-effort. Keep lexical order when the
		// embedding call fails.
		logger.Warn("query embedding failed, keeping lexical order", "error", err)
		if len(candidates) > rerankK {
			candidates = candidates[:rerankK]
		}
		return candidates, nil
	}

	for i := range candidates {
		vec, err := s.chunkVector(ctx, candidates[i].ChunkID)
		if err != nil {
			logger.Warn("missing chunk vector", "chunk_id", candidates[i].ChunkID, "error", err)
			candidates[i].Score = 0
			continue
		}
		candidates[i].Score = cosineSimilarity(queryVec, vec)
	}

	// Stable selection sort keeps lexical order between equal scores.
	for i := 0; i < len(candidates)-1; i++ {
		best := i
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].Score > candidates[best].Score {
				best = j
			}
		}
		candidates[i], candidates[best] = candidates[best], candidates[i]
	}

	if len(candidates) > rerankK {
		candidates = candidates[:rerankK]
	}
	return candidates, nil
}

// lexicalCandidates walks the sanitizing ladder until one MATCH variant
// returns rows. All variants failing means no results, never an error.
func (s *Store) lexicalCandidates(ctx context.Context, query string, limit int) []Result {
	for _, q := range []string{query, Sanitize(query), Prefixify(query)} {
		if strings.TrimSpace(q) == "" {
			continue
		}
		results, err := s.matchFTS(ctx, q, limit)
		if err != nil {
			logger.Debug("fts query rejected", "query", q, "error", err)
			continue
		}
		if len(results) > 0 {
			return results
		}
	}
	return nil
}

func (s *Store) matchFTS(ctx context.Context, query string, limit int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, content FROM chunks_fts WHERE chunks_fts MATCH ? ORDER BY rank LIMIT ?`,
		query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ChunkID, &r.Content); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) chunkVector(ctx context.Context, chunkID int64) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT vector FROM embeddings WHERE chunk_id = ?`, chunkID).Scan(&blob)
	if err != nil {
		return nil, err
	}
	return bytesToFloat32Slice(blob), nil
}

// Sanitize strips every character FTS5 could read as syntax, collapsing
// the remainder to space-separated bare terms.
func Sanitize(query string) string {
	return strings.TrimSpace(ftsSafe.ReplaceAllString(query, " "))
}

// Prefixify turns each sanitized term into a prefix query (term*),
// the loosest variant on the retry ladder.
func Prefixify(query string) string {
	terms := strings.Fields(Sanitize(query))
	for i, t := range terms {
		terms[i] = fmt.Sprintf(`"%s"*`, t)
	}
	return strings.Join(terms, " ")
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom < 1e-12 {
		return 0
	}
	return dot / denom
}
