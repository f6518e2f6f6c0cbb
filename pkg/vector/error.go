package vector

import "fmt"

// CorruptDataError is returned when a stored embedding blob cannot be decoded
// because its length is not a whole number of float32 values.
type CorruptDataError struct {
	Length int
}

func (e CorruptDataError) Error() string {
	return fmt.Sprintf("corrupt embedding blob: length %d is not a multiple of %d", e.Length, bytesPerValue)
}
