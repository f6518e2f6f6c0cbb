package chunker_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecshard/pkg/chunker"
)

var _ = Describe("WordTokenizer", func() {
	var tok *chunker.WordTokenizer

	BeforeEach(func() {
		tok = chunker.NewWordTokenizer()
	})

	It("treats each word and its leading space as one token", func() {
		Expect(tok.Encode("one two three")).To(HaveLen(3))
	})

	It("splits punctuation from words", func() {
		Expect(tok.Encode("Hello world.")).To(HaveLen(3))
	})

	It("assigns the same id to repeated tokens", func() {
		tokens := tok.Encode("a a")
		Expect(tokens).To(HaveLen(2))
		Expect(tok.Encode("a")).To(Equal(tokens[:1]))
	})

	DescribeTable("decodes back to the original text",
		func(text string) {
			Expect(tok.Decode(tok.Encode(text))).To(Equal(text))
		},
		Entry("plain words", "the quick brown fox"),
		Entry("punctuation and digits", "v1.2, released 2024!"),
		Entry("runs of whitespace", "a  b\n\n\tc "),
		Entry("non-latin text", "héllo wörld 日本語"),
		Entry("empty", ""),
	)

	Describe("vocabulary limit", func() {
		BeforeEach(func() {
			tok = chunker.NewWordTokenizerWithLimit(2)
		})

		It("keeps the previous generation decodable", func() {
			first := tok.Encode("a b")
			second := tok.Encode("c d")

			Expect(tok.Decode(first)).To(Equal("a b"))
			Expect(tok.Decode(second)).To(Equal("c d"))
		})

		It("evicts generations older than the previous one", func() {
			first := tok.Encode("a b")
			second := tok.Encode("c d")
			third := tok.Encode("e f")

			Expect(tok.Decode(first)).To(BeEmpty())
			Expect(tok.Decode(second)).To(Equal("c d"))
			Expect(tok.Decode(third)).To(Equal("e f"))
			Expect(tok.Len()).To(Equal(4))
		})

		It("stays bounded over many distinct words", func() {
			for i := range 100 {
				text := fmt.Sprintf("w%d x%d", i, i)
				Expect(tok.Decode(tok.Encode(text))).To(Equal(text))
			}
			Expect(tok.Len()).To(BeNumerically("<=", 4))
		})
	})
})

var _ = Describe("TiktokenTokenizer", func() {
	It("round trips text through the default encoding", func() {
		tok, err := chunker.NewTiktokenTokenizer("")
		Expect(err).NotTo(HaveOccurred())

		tokens := tok.Encode("hello world")
		Expect(tokens).NotTo(BeEmpty())
		Expect(tok.Decode(tokens)).To(Equal("hello world"))
	})

	It("rejects unknown encodings", func() {
		_, err := chunker.NewTiktokenTokenizer("not-an-encoding")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewTokenizer", func() {
	It("selects the word tokenizer by name", func() {
		tok, err := chunker.NewTokenizer(chunker.WordEncoding)
		Expect(err).NotTo(HaveOccurred())
		Expect(tok).To(BeAssignableToTypeOf(&chunker.WordTokenizer{}))
	})
})
