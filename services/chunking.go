package services

import "strings"

// ChunkText splits text into fixed-size windows with overlap. Windows are
// cut on rune boundaries stepping size-overlap characters at a time, then
// trimmed of surrounding whitespace; windows that trim to nothing are
// dropped. Judicial PDFs produce long runs of padding, so the trim pass
// matters in practice.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}

	var windows []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	chunks := make([]string, 0, len(windows))
	for _, w := range windows {
		if trimmed := strings.TrimSpace(w); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}
