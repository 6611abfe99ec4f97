// Package chunking bounds the size of transcript text sent to the model.
//
// Sizes are counted in characters (Unicode code points), not bytes, so a
// limit means the same thing for every script.
package chunking

import (
	"strings"
	"unicode/utf8"
)

const lineSeparator = "\n"

const (
	// TruncatedMarker is appended when a transcript is cut before the first attempt.
	TruncatedMarker = "\n...[transcript truncated due to length limits]"
	// RetryTruncatedMarker is appended when a transcript is cut again before a retry.
	RetryTruncatedMarker = "\n...[transcript truncated due to length]"
)

// Len returns the number of characters in text.
func Len(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate returns text unchanged when it holds at most n characters, otherwise
// its first n characters followed by marker.
func Truncate(text string, n int, marker string) string {
	if n < 0 {
		n = 0
	}
	if Len(text) <= n {
		return text
	}
	return prefix(text, n) + marker
}

// IsTruncated reports whether Truncate(text, n, ...) would cut text.
func IsTruncated(text string, n int) bool {
	return Len(text) > n
}

// prefix returns the first n characters of text without splitting a rune.
func prefix(text string, n int) string {
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}

// Chunk splits text on line boundaries into segments of at most maxSize
// characters, counting one extra character per line for its separator. Lines
// are packed greedily; a single line longer than maxSize becomes its own chunk
// and is never split. Joining the result with "\n" reproduces text.
func Chunk(text string, maxSize int) []string {
	if Len(text) <= maxSize {
		return []string{text}
	}

	lines := strings.Split(text, lineSeparator)
	chunks := make([]string, 0, Len(text)/max(maxSize, 1)+1)
	current := make([]string, 0, 64)
	currentSize := 0

	for _, line := range lines {
		lineSize := Len(line) + 1
		if currentSize+lineSize > maxSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, lineSeparator))
			current = current[:0]
			currentSize = 0
		}
		current = append(current, line)
		currentSize += lineSize
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, lineSeparator))
	}

	return chunks
}
