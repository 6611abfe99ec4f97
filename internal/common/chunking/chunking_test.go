package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTranscript(lines int) string {
	var b strings.Builder
	for i := 0; i < lines; i++ {
		if i > 0 {
			b.WriteString("\n")
		}
		speaker := "Alice"
		if i%2 == 1 {
			speaker = "Bob"
		}
		fmt.Fprintf(&b, "[00:%02d:%02d] %s: line number %d of the call", i/60, i%60, speaker, i)
	}
	return b.String()
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		n        int
		expected string
	}{
		{name: "shorter than limit", text: "hello", n: 10, expected: "hello"},
		{name: "exactly at limit", text: "hello", n: 5, expected: "hello"},
		{name: "over limit", text: "hello world", n: 5, expected: "hello" + TruncatedMarker},
		{name: "zero limit", text: "abc", n: 0, expected: TruncatedMarker},
		{name: "empty text", text: "", n: 0, expected: ""},
		{name: "multibyte counted as characters", text: "héllo wörld", n: 7, expected: "héllo w" + TruncatedMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.text, tt.n, TruncatedMarker))
		})
	}
}

func TestTruncate_KeepsPrefixOfOriginal(t *testing.T) {
	text := strings.Repeat("x", 40000)
	out := Truncate(text, 30000, TruncatedMarker)

	require.True(t, strings.HasSuffix(out, TruncatedMarker))
	body := strings.TrimSuffix(out, TruncatedMarker)
	assert.Equal(t, 30000, Len(body))
	assert.True(t, strings.HasPrefix(text, body))
	assert.True(t, IsTruncated(text, 30000))
	assert.False(t, IsTruncated(body, 30000))
}

func TestChunk_SmallInputIsSingleChunk(t *testing.T) {
	inputs := []string{"", "Alice: Hi", "Alice: Hi\nBob: Hello", buildTranscript(10)}
	for _, in := range inputs {
		chunks := Chunk(in, Len(in)+1)
		require.Len(t, chunks, 1)
		assert.Equal(t, in, chunks[0])

		chunks = Chunk(in, Len(in))
		require.Len(t, chunks, 1)
		assert.Equal(t, in, chunks[0])
	}
}

func TestChunk_RoundTrip(t *testing.T) {
	inputs := []struct {
		name string
		text string
		max  int
	}{
		{name: "many short lines", text: buildTranscript(500), max: 1000},
		{name: "tiny limit", text: buildTranscript(20), max: 5},
		{name: "blank lines", text: "a\n\n\nb\n\nc\n", max: 2},
		{name: "trailing newline", text: buildTranscript(50) + "\n", max: 200},
		{name: "multibyte", text: strings.Repeat("ü: grüße\n", 100), max: 37},
	}

	for _, tt := range inputs {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(tt.text, tt.max)
			require.NotEmpty(t, chunks)
			assert.Equal(t, tt.text, strings.Join(chunks, "\n"))
		})
	}
}

func TestChunk_RespectsLimitExceptLongLines(t *testing.T) {
	text := buildTranscript(300)
	max := 400

	chunks := Chunk(text, max)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		// every line inside a chunk costs its length plus a separator
		size := 0
		for _, line := range strings.Split(c, "\n") {
			size += Len(line) + 1
		}
		assert.LessOrEqual(t, size, max, "chunk %d over limit", i)
	}
}

func TestChunk_LongLineIsNotSplit(t *testing.T) {
	long := strings.Repeat("y", 50)
	text := "a: short\n" + long + "\nb: short"

	chunks := Chunk(text, 20)

	assert.Equal(t, []string{"a: short", long, "b: short"}, chunks)
}

func TestChunk_Deterministic(t *testing.T) {
	text := buildTranscript(200)
	assert.Equal(t, Chunk(text, 300), Chunk(text, 300))
}
