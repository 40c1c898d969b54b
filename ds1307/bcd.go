package ds1307

// DecodeBCD converts a BCD byte (tens in the high nibble, units in the low nibble) to binary.
// Both nibbles must be in the range 0-9; other values give meaningless results.
func DecodeBCD(b uint8) uint8 {
	return (b>>4)*10 + b&0x0F
}

// EncodeBCD converts v to BCD. v must not exceed 99.
func EncodeBCD(v uint8) uint8 {
	var tens uint8
	for v >= 10 {
		v -= 10
		tens += 0x10
	}
	return tens + v
}

// DecodeBCDs converts the first n bytes of buf from BCD to binary in place.
func DecodeBCDs(buf []byte, n int) {
	for i := n - 1; i >= 0; i-- {
		buf[i] = DecodeBCD(buf[i])
	}
}

// EncodeBCDs converts the first n bytes of buf from binary to BCD in place.
func EncodeBCDs(buf []byte, n int) {
	for i := n - 1; i >= 0; i-- {
		buf[i] = EncodeBCD(buf[i])
	}
}
