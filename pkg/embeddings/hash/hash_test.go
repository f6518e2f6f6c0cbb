package hash_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecshard/pkg/embeddings/hash"
	"github.com/papercomputeco/vecshard/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var e *hash.Embedder

	BeforeEach(func() {
		e = hash.NewEmbedder(256)
	})

	It("produces vectors of the configured dimension", func() {
		out, err := e.Embed(context.Background(), []string{"hello world"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0]).To(HaveLen(256))
	})

	It("falls back to the default dimension", func() {
		out, _ := hash.NewEmbedder(0).Embed(context.Background(), []string{"x"})
		Expect(out[0]).To(HaveLen(hash.DefaultDimensions))
	})

	It("is deterministic and case-insensitive", func() {
		out, _ := e.Embed(context.Background(), []string{"Vector Search", "vector search"})
		Expect(out[0]).To(Equal(out[1]))
	})

	It("scores texts that share words above texts that do not", func() {
		out, _ := e.Embed(context.Background(), []string{
			"cats chase mice",
			"cats chase mice at night",
			"quarterly revenue grew",
		})

		related := vector.CosineSimilarity(out[0], out[1])
		unrelated := vector.CosineSimilarity(out[0], out[2])
		Expect(related).To(BeNumerically(">", unrelated))
	})

	It("returns a zero vector for text without words", func() {
		out, _ := e.Embed(context.Background(), []string{"  ...  "})
		for _, x := range out[0] {
			Expect(x).To(Equal(0.0))
		}
	})
})
