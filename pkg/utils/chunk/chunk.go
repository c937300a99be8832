package chunk

import "strings"

// DefaultSize is the chunk window in estimated tokens
const DefaultSize = 512

// EstimateTokens estimates the token count of text.
// ASCII runes weigh 1 and other runes weigh 4; four weight units make one token.
func EstimateTokens(text string) int {
	return (weight(text) + 3) / 4
}

func weight(text string) int {
	w := 0
	for _, r := range text {
		w += runeWeight(r)
	}
	return w
}

func runeWeight(r rune) int {
	if r <= 127 {
		return 1
	}
	return 4
}

// Split cuts text into windows of at most size estimated tokens without overlap.
// Windows break on whitespace; a word longer than a whole window is cut by rune.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	limit := size * 4

	var (
		chunks []string
		buf    strings.Builder
		bufW   int
	)
	flush := func() {
		if buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufW = 0
		}
	}

	for _, word := range strings.Fields(text) {
		w := weight(word)
		if w > limit {
			flush()
			chunks = append(chunks, cutWord(word, limit)...)
			continue
		}

		sep := 0
		if buf.Len() > 0 {
			sep = 1
		}
		if bufW+sep+w > limit {
			flush()
			sep = 0
		}
		if sep == 1 {
			buf.WriteByte(' ')
		}
		buf.WriteString(word)
		bufW += sep + w
	}
	flush()

	return chunks
}

func cutWord(word string, limit int) []string {
	var (
		pieces []string
		start  int
		w      int
	)
	for i, r := range word {
		rw := runeWeight(r)
		if w+rw > limit {
			pieces = append(pieces, word[start:i])
			start, w = i, 0
		}
		w += rw
	}
	if start < len(word) {
		pieces = append(pieces, word[start:])
	}
	return pieces
}
