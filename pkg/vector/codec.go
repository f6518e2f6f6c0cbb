// Package vector converts embeddings to and from their stored blob form and
// scores them against each other.
//
// A stored embedding is a packed little-endian sequence of IEEE-754 float32
// values, 4 bytes per dimension, with no header. Values are held as float64 in
// memory, so encoding rounds to float32 precision.
package vector

import (
	"encoding/binary"
	"math"
)

const bytesPerValue = 4

// Encode packs v into a little-endian float32 blob. An empty vector encodes to
// an empty blob.
func Encode(v []float64) []byte {
	buf := make([]byte, len(v)*bytesPerValue)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*bytesPerValue:], math.Float32bits(float32(f)))
	}
	return buf
}

// Decode unpacks a blob produced by Encode. An empty blob decodes to an empty
// vector; any length that is not a multiple of 4 yields a CorruptDataError.
func Decode(b []byte) ([]float64, error) {
	if len(b)%bytesPerValue != 0 {
		return nil, CorruptDataError{Length: len(b)}
	}

	v := make([]float64, len(b)/bytesPerValue)
	for i := range v {
		v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*bytesPerValue:])))
	}
	return v, nil
}
