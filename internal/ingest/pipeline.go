package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jamolinav/ai-assist-attorney/internal/ai"
	"github.com/jamolinav/ai-assist-attorney/internal/casestore"
	"github.com/jamolinav/ai-assist-attorney/internal/logger"
	"github.com/jamolinav/ai-assist-attorney/services"
)

// ExtractFunc extracts plain text from a document on disk.
type ExtractFunc func(path string) (string, error)

// Pipeline turns a directory of downloaded case documents into an
// indexed case store: extract text, chunk, embed in batches, persist.
type Pipeline struct {
	embedder  ai.Embedder
	extract   ExtractFunc
	chunkSize int
	overlap   int
	batchSize int
}

func NewPipeline(embedder ai.Embedder, chunkSize, overlap, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Pipeline{
		embedder:  embedder,
		extract:   services.ExtractPDFText,
		chunkSize: chunkSize,
		overlap:   overlap,
		batchSize: batchSize,
	}
}

// WithExtractor overrides the text extractor. Tests use this to feed
// plain text files through the pipeline.
func (p *Pipeline) WithExtractor(extract ExtractFunc) *Pipeline {
	p.extract = extract
	return p
}

// IngestDir indexes every PDF under dir into the store, in name order.
// Documents that fail extraction or yield no text are logged and
// skipped; an embedding failure aborts the document but not the run.
// Returns the number of chunks indexed.
func (p *Pipeline) IngestDir(ctx context.Context, store *casestore.Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read document dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	total := 0
	for _, path := range paths {
		n, err := p.ingestFile(ctx, store, path)
		if err != nil {
			logger.Error("document ingest failed", "path", path, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, store *casestore.Store, path string) (int, error) {
	text, err := p.extract(path)
	if err != nil {
		return 0, fmt.Errorf("extraction failed: %w", err)
	}

	chunks := services.ChunkText(text, p.chunkSize, p.overlap)
	if len(chunks) == 0 {
		logger.Warn("document produced no chunks, skipping", "path", path)
		return 0, nil
	}

	meta := fmt.Sprintf(`{"chars":%d,"chunks":%d}`, len(text), len(chunks))
	docID, err := store.InsertDocument(filepath.Base(path), meta)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := p.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return indexed, fmt.Errorf("embedding batch failed at chunk %d: %w", start, err)
		}

		for i, content := range batch {
			if err := store.InsertChunk(docID, start+i, content, vectors[i]); err != nil {
				return indexed, fmt.Errorf("failed to store chunk %d: %w", start+i, err)
			}
			indexed++
		}
	}

	logger.Info("document ingested", "path", path, "chunks", indexed)
	return indexed, nil
}
