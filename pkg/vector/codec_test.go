package vector_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecshard/pkg/vector"
)

var _ = Describe("Codec", func() {
	Describe("Encode", func() {
		It("packs 4 little-endian bytes per value", func() {
			blob := vector.Encode([]float64{1.0})
			Expect(blob).To(Equal([]byte{0x00, 0x00, 0x80, 0x3f}))
		})

		It("encodes an empty vector to an empty blob", func() {
			Expect(vector.Encode(nil)).To(BeEmpty())
			Expect(vector.Encode([]float64{})).To(BeEmpty())
		})
	})

	Describe("Decode", func() {
		It("restores values that are exact in float32", func() {
			in := []float64{0.5, -1.25, 3, 0}
			out, err := vector.Decode(vector.Encode(in))
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(in))
		})

		It("rounds values to float32 precision", func() {
			out, err := vector.Decode(vector.Encode([]float64{0.1}))
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(1))
			Expect(out[0]).To(BeNumerically("~", 0.1, 1e-7))
			Expect(out[0]).To(Equal(float64(float32(0.1))))
		})

		It("decodes an empty blob to an empty vector", func() {
			out, err := vector.Decode([]byte{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeEmpty())
		})

		It("rejects blobs whose length is not a multiple of 4", func() {
			_, err := vector.Decode([]byte{1, 2, 3, 4, 5})
			Expect(err).To(HaveOccurred())

			var corrupt vector.CorruptDataError
			Expect(errors.As(err, &corrupt)).To(BeTrue())
			Expect(corrupt.Length).To(Equal(5))
			Expect(err.Error()).To(ContainSubstring("length 5"))
		})
	})
})
