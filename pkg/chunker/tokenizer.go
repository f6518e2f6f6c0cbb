package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const (
	// DefaultEncoding is the BPE encoding used when none is configured.
	DefaultEncoding = "cl100k_base"

	// WordEncoding names the WordTokenizer in configuration.
	WordEncoding = "words"
)

// Tokenizer converts text to token ids and back. Decoding the full output of
// Encode must reproduce the input text.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

var loaderOnce sync.Once

// TiktokenTokenizer is a Tokenizer backed by an OpenAI BPE encoding.
// Encoding ranks are loaded from the embedded offline loader so no network
// access is needed at startup.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer returns a tokenizer for the named encoding, or
// DefaultEncoding when name is empty.
func NewTiktokenTokenizer(name string) (*TiktokenTokenizer, error) {
	if name == "" {
		name = DefaultEncoding
	}

	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %q: %w", name, err)
	}

	return &TiktokenTokenizer{enc: enc}, nil
}

// Encode tokenizes text. Special-token markers are encoded as ordinary text.
func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// wordPattern splits text into words with their leading space, digit runs,
// punctuation runs and leftover whitespace. Every byte of the input lands in
// exactly one token.
var wordPattern = regexp.MustCompile(` ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`)

// DefaultWordVocabLimit bounds the pieces held per WordTokenizer generation.
const DefaultWordVocabLimit = 1 << 20

type wordVocab struct {
	ids    map[string]int
	pieces []string
}

func newWordVocab() *wordVocab {
	return &wordVocab{ids: make(map[string]int)}
}

// WordTokenizer is a lossless, dependency-free tokenizer that treats each word
// (with its leading space) as one token. It is meant for tests and the
// offline preset, where no BPE encoding is wanted.
//
// Token ids are assigned on first sight. Once a generation holds limit pieces
// a new one is started and only the previous generation is kept, so memory
// stays bounded in long-running processes. Ids from older generations decode
// to nothing; Encode and the Decode of its result must not be separated by two
// rotations, which the chunker never does for texts under limit pieces.
type WordTokenizer struct {
	mu       sync.Mutex
	limit    int
	gen      int
	current  *wordVocab
	previous *wordVocab
}

func NewWordTokenizer() *WordTokenizer {
	return NewWordTokenizerWithLimit(DefaultWordVocabLimit)
}

// NewWordTokenizerWithLimit returns a WordTokenizer holding at most limit
// pieces per generation.
func NewWordTokenizerWithLimit(limit int) *WordTokenizer {
	if limit <= 0 {
		limit = DefaultWordVocabLimit
	}
	return &WordTokenizer{limit: limit, current: newWordVocab()}
}

func (w *WordTokenizer) Encode(text string) []int {
	pieces := wordPattern.FindAllString(text, -1)

	w.mu.Lock()
	defer w.mu.Unlock()

	tokens := make([]int, len(pieces))
	for i, piece := range pieces {
		idx, ok := w.current.ids[piece]
		if !ok {
			if len(w.current.pieces) >= w.limit {
				w.previous = w.current
				w.current = newWordVocab()
				w.gen++
			}
			idx = len(w.current.pieces)
			w.current.ids[piece] = idx
			w.current.pieces = append(w.current.pieces, piece)
		}
		tokens[i] = w.gen*w.limit + idx
	}
	return tokens
}

func (w *WordTokenizer) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf strings.Builder
	for _, id := range tokens {
		if piece, ok := w.piece(id); ok {
			buf.WriteString(piece)
		}
	}
	return buf.String()
}

// Len returns the number of pieces currently held.
func (w *WordTokenizer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.current.pieces)
	if w.previous != nil {
		n += len(w.previous.pieces)
	}
	return n
}

func (w *WordTokenizer) piece(id int) (string, bool) {
	if id < 0 {
		return "", false
	}

	var vocab *wordVocab
	switch id / w.limit {
	case w.gen:
		vocab = w.current
	case w.gen - 1:
		vocab = w.previous
	}
	if vocab == nil {
		return "", false
	}

	idx := id % w.limit
	if idx >= len(vocab.pieces) {
		return "", false
	}
	return vocab.pieces[idx], true
}

// NewTokenizer returns the tokenizer for an encoding name. "words" selects the
// WordTokenizer; anything else is treated as a BPE encoding name.
func NewTokenizer(encoding string) (Tokenizer, error) {
	if encoding == WordEncoding {
		return NewWordTokenizer(), nil
	}
	return NewTiktokenTokenizer(encoding)
}
