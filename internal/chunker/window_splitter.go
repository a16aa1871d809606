package chunker

import (
	"strings"

	"docchat/internal/domain"
)

// WindowSplitter splits text into fixed-size overlapping character windows.
// Window size bounds the embedding request; overlap preserves context
// across chunk boundaries.
type WindowSplitter struct {
	size    int
	overlap int
}

// NewWindowSplitter creates a splitter. Size defaults to 1000 characters,
// overlap to 100; overlap is clamped below the window size.
func NewWindowSplitter(size, overlap int) *WindowSplitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &WindowSplitter{size: size, overlap: overlap}
}

// Split windows every document and carries its metadata onto each chunk.
func (s *WindowSplitter) Split(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		for _, text := range s.SplitText(doc.Text) {
			chunks = append(chunks, domain.Chunk{Text: text, Metadata: copyMetadata(doc.Metadata)})
		}
	}
	return chunks
}

// SplitText returns the overlapping windows of a single text. A text of
// length L yields ceil((L-overlap)/(size-overlap)) windows; anything that
// fits in one window yields exactly one.
func (s *WindowSplitter) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= s.size {
		return []string{text}
	}
	step := s.size - s.overlap
	var windows []string
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end >= len(runes) {
			windows = append(windows, string(runes[start:]))
			break
		}
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}

func copyMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
