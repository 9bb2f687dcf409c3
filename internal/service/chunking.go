package service

import (
	"regexp"
	"strings"
	"unicode"
)

// ChunkConfig controls how document text is split for embedding.
type ChunkConfig struct {
	// MaxTokens bounds chunk size; converted to a character budget with the
	// token-to-chars heuristic below.
	MaxTokens int
	// OverlapTokens worth of trailing text is repeated at the start of the
	// next chunk so context survives the boundary.
	OverlapTokens int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxTokens:     500,
		OverlapTokens: 100,
	}
}

const charsPerToken = 4

// TextChunk is one segment produced by the chunker, before persistence.
type TextChunk struct {
	Index      int
	Content    string
	TokenCount int
}

var multiNewline = regexp.MustCompile(`\n{3,}`)

// normalizeText unifies line endings, collapses runs of blank lines down to a
// single blank line and trims surrounding whitespace.
func normalizeText(text string) string {
	clean := strings.ReplaceAll(text, "\r\n", "\n")
	clean = strings.ReplaceAll(clean, "\r", "\n")
	clean = multiNewline.ReplaceAllString(clean, "\n\n")
	return strings.TrimSpace(clean)
}

// ChunkText splits text into overlapping chunks bounded by cfg.MaxTokens.
// Within each window it prefers to cut at a paragraph break, then a sentence
// end, then a newline, then a space; a candidate cut is only accepted in the
// last 70% of the window so no pathologically small chunk is emitted. Empty
// input yields nil. The function performs no I/O and never fails.
func ChunkText(text string, cfg ChunkConfig) []TextChunk {
	clean := normalizeText(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxTokens <= 0 || cfg.OverlapTokens < 0 {
		cfg = DefaultChunkConfig()
	}

	maxChars := cfg.MaxTokens * charsPerToken
	overlapChars := cfg.OverlapTokens * charsPerToken

	runes := []rune(clean)
	if len(runes) <= maxChars {
		return []TextChunk{{Index: 0, Content: clean, TokenCount: estimateTokens(clean)}}
	}

	chunks := make([]TextChunk, 0, 8)
	start := 0
	index := 0
	for start < len(runes) {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			if cut := findBreakPoint(runes, start, end); cut > start {
				end = cut
			}
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, TextChunk{
				Index:      index,
				Content:    content,
				TokenCount: estimateTokens(content),
			})
			index++
		}

		if end >= len(runes) {
			break
		}

		next := end - overlapChars
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// findBreakPoint searches [start,end) backward for the best natural cut and
// returns its absolute position, or -1 when no acceptable cut exists. A cut
// is acceptable only at or past 30% of the window, otherwise cutting at the
// window edge beats emitting a tiny chunk.
func findBreakPoint(runes []rune, start, end int) int {
	window := end - start
	if window <= 0 {
		return -1
	}
	minBreak := start + window*3/10

	// Paragraph break: cut after the blank line.
	for i := end - 2; i >= start; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			if cut := i + 2; cut >= minBreak {
				return cut
			}
			break
		}
	}

	// Sentence end: terminator followed by whitespace and a capital letter.
	for i := end - 1; i >= start; i-- {
		if !isSentenceEnd(runes, i) {
			continue
		}
		if cut := i + 1; cut >= minBreak {
			return cut
		}
		break
	}

	// Single newline.
	for i := end - 1; i >= start; i-- {
		if runes[i] == '\n' {
			if cut := i + 1; cut >= minBreak {
				return cut
			}
			break
		}
	}

	// Plain space.
	for i := end - 1; i >= start; i-- {
		if runes[i] == ' ' {
			if cut := i + 1; cut >= minBreak {
				return cut
			}
			break
		}
	}

	return -1
}

func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '.', '!', '?':
	default:
		return false
	}
	j := i + 1
	if j >= len(runes) || !unicode.IsSpace(runes[j]) {
		return false
	}
	for j < len(runes) && unicode.IsSpace(runes[j]) {
		j++
	}
	return j < len(runes) && unicode.IsUpper(runes[j])
}

// estimateTokens approximates the token count of content with the same
// token-to-chars heuristic used for the window budget, rounding up.
func estimateTokens(content string) int {
	n := len([]rune(content))
	return (n + charsPerToken - 1) / charsPerToken
}
