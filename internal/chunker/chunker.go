// Package chunker splits document text into bounded, citation-sized passages.
// Chunks are the unit everything downstream works with: generation cites them,
// grading quotes them, embeddings index them.
package chunker

import (
	"regexp"
	"strings"

	"examcraft/internal/domain"
)

// DefaultMaxChars is the chunk size budget when the caller passes none.
const DefaultMaxChars = 1800

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n+`)
	headingLine    = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
)

// Plan is one chunk-to-be: the text plus its heading and paragraph range.
// Callers assign IDs and document linkage.
type Plan struct {
	Text string
	Meta domain.ChunkMeta
}

// normalize collapses CRLF/CR line endings and trims surrounding whitespace.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

// extractHeading returns the heading text when the paragraph's first line is
// a markdown heading, else "".
func extractHeading(paragraph string) string {
	firstLine := paragraph
	if i := strings.IndexByte(paragraph, '\n'); i >= 0 {
		firstLine = paragraph[:i]
	}
	m := headingLine.FindStringSubmatch(firstLine)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ChunkText splits text into chunks of at most maxChars characters, greedily
// packing whole paragraphs. A single paragraph longer than the budget becomes
// its own oversized chunk rather than being split mid-paragraph. Each chunk
// remembers the markdown heading in effect at its first paragraph and the
// inclusive [ParaStart, ParaEnd] paragraph range, so the original text order
// is fully reconstructible. Empty or whitespace-only input yields zero
// chunks.
func ChunkText(rawText string, maxChars int) []Plan {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	text := normalize(rawText)
	if text == "" {
		return nil
	}

	var paragraphs []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var (
		chunks         []Plan
		heading        string
		current        string
		currentHeading string
		paraStart      int
	)

	push := func(paraEnd int) {
		trimmed := strings.TrimSpace(current)
		if trimmed == "" {
			return
		}
		chunks = append(chunks, Plan{
			Text: trimmed,
			Meta: domain.ChunkMeta{
				Heading:   currentHeading,
				ParaStart: paraStart,
				ParaEnd:   paraEnd,
			},
		})
	}

	for i, p := range paragraphs {
		if h := extractHeading(p); h != "" {
			heading = h
		}

		if current == "" {
			currentHeading = heading
			paraStart = i
			current = p
			continue
		}

		next := current + "\n\n" + p
		if len(next) > maxChars {
			push(i - 1)
			currentHeading = heading
			paraStart = i
			current = p
			continue
		}
		current = next
	}
	push(len(paragraphs) - 1)

	return chunks
}
