package ingest

import "fmt"

// chunkText splits text into rune windows of at most size characters, each
// overlapping the previous by overlap characters. The last window is never
// empty.
func chunkText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// chunkID derives a child document ID from its parent and window index.
func chunkID(parentID string, index int) string {
	return fmt.Sprintf("%s::chunk::%d", parentID, index)
}
