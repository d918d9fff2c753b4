package knowledge

import "strings"

// SplitText chunks free text into overlapping windows. Chunk boundaries are
// nudged back to the last newline or space inside the window so rule
// statements are not cut mid-sentence.
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			if cut := lastBreak(runes[start:end]); cut > overlap {
				end = start + cut
			}
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}

func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' || window[i] == ' ' {
			return i
		}
	}
	return -1
}
