// Package chunker splits extracted document text into bounded segments. The
// split is a pure function of its inputs: the same text, size, overlap, and
// mode always produce an identical sequence, which is what makes reprocessing
// idempotent.
package chunker

import "strings"

// Default parameters used by the document processor when nothing is
// configured.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Mode selects the splitting strategy.
type Mode string

const (
	// ModeWords packs whole words until the next word would exceed the size
	// bound. Words are never split; overlap does not apply.
	ModeWords Mode = "words"
	// ModeOffsets slides a fixed character window across the text, advancing
	// by size-overlap each step.
	ModeOffsets Mode = "offsets"
)

// Chunk is one produced segment. Index is zero-based and gapless. StartChar
// and EndChar describe the segment's character range; in ModeWords they refer
// to positions in the space-joined word sequence.
type Chunk struct {
	Index     int
	Content   string
	StartChar int
	EndChar   int
}

// Length returns the number of characters in the chunk content.
func (c Chunk) Length() int {
	return len(c.Content)
}

// Chunker splits text according to its configured size, overlap, and mode.
type Chunker struct {
	size    int
	overlap int
	mode    Mode
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
// Only ModeOffsets uses it.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithMode selects the splitting strategy.
func WithMode(mode Mode) Option {
	return func(c *Chunker) {
		if mode == ModeWords || mode == ModeOffsets {
			c.mode = mode
		}
	}
}

// New builds a Chunker. An overlap that would not let the window advance is
// clamped to a quarter of the chunk size.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
		mode:    ModeWords,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Split chunks text using the configured mode. Empty input yields no chunks.
func (c *Chunker) Split(text string) []Chunk {
	if c.mode == ModeOffsets {
		return c.splitOffsets(text)
	}
	return c.splitWords(text)
}

// splitWords accumulates whole words until adding the next word (plus one
// separator) would exceed the size bound, then flushes the accumulator as one
// chunk. A single word longer than the bound becomes its own oversized chunk
// rather than being truncated.
func (c *Chunker) splitWords(text string) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		chunks  []Chunk
		current []string
		length  int
		offset  int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.Join(current, " ")
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Content:   content,
			StartChar: offset,
			EndChar:   offset + len(content),
		})
		offset += len(content) + 1
		current = current[:0]
		length = 0
	}

	for _, word := range words {
		wordLen := len(word) + 1 // +1 for the separator
		if length+wordLen > c.size && len(current) > 0 {
			flush()
		}
		current = append(current, word)
		length += wordLen
	}
	flush()
	return chunks
}

// splitOffsets slides a window of at most size characters, starting window i
// at i*(size-overlap). The final window may be shorter and always ends at
// len(text).
func (c *Chunker) splitOffsets(text string) []Chunk {
	if text == "" {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]Chunk, 0, len(text)/step+1)
	for start := 0; start < len(text); start += step {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Content:   text[start:end],
			StartChar: start,
			EndChar:   end,
		})
	}
	return chunks
}
