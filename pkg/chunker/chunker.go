// Package chunker splits text into overlapping, token-bounded windows that
// prefer to end on a sentence or line boundary.
package chunker

import (
	"iter"
	"regexp"
	"slices"
	"strings"
)

const (
	// DefaultChunkSize is the default maximum number of tokens per chunk.
	DefaultChunkSize = 768

	// DefaultOverlap is the default number of tokens shared by consecutive chunks.
	DefaultOverlap = 115

	// RollbackThreshold is the fraction of a window's text that must precede a
	// boundary match before the window is shortened to end at that match.
	// Matches at or before this point are ignored so chunks do not collapse.
	RollbackThreshold = 0.5
)

// DefaultBoundary matches a sentence end followed by whitespace, or a newline.
var DefaultBoundary = regexp.MustCompile(`[.!?]+\s+|\n+`)

// Chunk is one window of the source text.
type Chunk struct {
	// ID is the zero-based position of the chunk in the sequence.
	ID int

	// Text is the decoded window.
	Text string

	// TokenStart and TokenEnd delimit the window in the source token sequence
	// as a half-open range.
	TokenStart int
	TokenEnd   int
}

// Chunker holds the windowing parameters. It carries no per-text state, so a
// single Chunker may be shared between goroutines as long as its Tokenizer is
// safe for concurrent use.
type Chunker struct {
	tokenizer Tokenizer
	chunkSize int
	overlap   int
	boundary  *regexp.Regexp
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum number of tokens per chunk.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the number of tokens shared by consecutive chunks.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithBoundary sets the boundary pattern. A nil pattern disables boundary
// rollback so every window is exactly chunkSize tokens except the last.
func WithBoundary(re *regexp.Regexp) Option {
	return func(c *Chunker) {
		c.boundary = re
	}
}

// New creates a Chunker using tokenizer and the given options.
func New(tokenizer Tokenizer, opts ...Option) *Chunker {
	c := &Chunker{
		tokenizer: tokenizer,
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
		boundary:  DefaultBoundary,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Split returns every chunk of text. Empty text yields no chunks.
func (c *Chunker) Split(text string) []Chunk {
	return slices.Collect(c.Chunks(text))
}

// SplitFragments joins fragments with a single space and splits the result.
func (c *Chunker) SplitFragments(fragments []string) []Chunk {
	return c.Split(strings.Join(fragments, " "))
}

// Chunks returns a lazy sequence of the chunks of text. Each iteration
// tokenizes text afresh, so the sequence may be ranged over more than once and
// always yields the same chunks as Split.
func (c *Chunker) Chunks(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		tokens := c.tokenizer.Encode(text)
		total := len(tokens)
		if total == 0 {
			return
		}

		overlap := clampOverlap(c.overlap, c.chunkSize, total)

		start := 0
		for id := 0; ; id++ {
			end := min(start+c.chunkSize, total)
			window := c.tokenizer.Decode(tokens[start:end])

			if end < total {
				end, window = c.rollback(tokens, start, end, window)
			}

			if !yield(Chunk{ID: id, Text: window, TokenStart: start, TokenEnd: end}) {
				return
			}

			if end >= total {
				return
			}

			// A rolled-back window can be shorter than the overlap; always
			// advance by at least one token.
			start = max(end-overlap, start+1)
		}
	}
}

// rollback shortens a window to end at its last boundary match when that
// match starts past RollbackThreshold of the window text. The new end is the
// last token that fits entirely before the end of the match, so the cut always
// falls on a token boundary.
func (c *Chunker) rollback(tokens []int, start, end int, window string) (int, string) {
	if c.boundary == nil {
		return end, window
	}

	matches := c.boundary.FindAllStringIndex(window, -1)
	if len(matches) == 0 {
		return end, window
	}

	last := matches[len(matches)-1]
	if float64(last[0]) <= float64(len(window))*RollbackThreshold {
		return end, window
	}

	cut := last[1]
	newEnd, consumed := start, 0
	for newEnd < end {
		n := len(c.tokenizer.Decode(tokens[newEnd : newEnd+1]))
		if consumed+n > cut {
			break
		}
		consumed += n
		newEnd++
	}

	if newEnd <= start || newEnd >= end {
		return end, window
	}

	return newEnd, window[:consumed]
}

// clampOverlap keeps overlap within [0, min(chunkSize-1, tokenCount-1)].
func clampOverlap(overlap, chunkSize, tokenCount int) int {
	return max(0, min(overlap, chunkSize-1, tokenCount-1))
}

// CheckTokenLimit counts the tokens in text and reports whether the count is
// within limit.
func CheckTokenLimit(tokenizer Tokenizer, text string, limit int) (int, bool) {
	count := len(tokenizer.Encode(text))
	return count, count <= limit
}
