// Package materials stores lecture material text as embedded chunks and
// serves semantic search over them.
package materials

import "strings"

// Chunk is a contiguous slice of a material's text.
type Chunk struct {
	Content   string
	StartChar int
	EndChar   int
}

// boundaryWindow is how far around the nominal chunk end ChunkText searches
// for a sentence boundary.
const boundaryWindow = 50

// ChunkText splits text into overlapping chunks of roughly size characters.
// Chunk ends snap to the nearest sentence terminator within boundaryWindow
// characters so chunks do not cut sentences mid-way. Whitespace-only chunks
// are dropped.
func ChunkText(text string, size, overlap int) []Chunk {
	if len(text) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []Chunk
	current := 0
	total := len(text)

	for current < total {
		end := current + size
		if end > total {
			end = total
		}

		if end < total {
			if snapped := snapToSentence(text, current, end); snapped > 0 {
				end = snapped
			}
		}

		content := strings.TrimSpace(text[current:end])
		if content != "" {
			chunks = append(chunks, Chunk{
				Content:   content,
				StartChar: current,
				EndChar:   end,
			})
		}

		if end == total {
			break
		}
		// A snapped end can land inside the overlap window; never let the
		// cursor stall or move backwards.
		next := end - overlap
		if next <= current {
			next = end
		}
		current = next
	}

	return chunks
}

// snapToSentence scans backwards from end+boundaryWindow for a sentence
// terminator followed by a space or end of text. Returns the index just past
// the terminator, or -1 when no boundary exists in the window.
func snapToSentence(text string, start, end int) int {
	hi := end + boundaryWindow
	if hi > len(text)-1 {
		hi = len(text) - 1
	}
	lo := end - boundaryWindow
	if lo < start+1 {
		lo = start + 1
	}
	if lo < 0 {
		lo = 0
	}

	for j := hi; j >= lo; j-- {
		switch text[j] {
		case '.', '!', '?':
			if j+1 == len(text) || text[j+1] == ' ' {
				return j + 1
			}
		}
	}
	return -1
}
