package bit

// IsSet will check if the bit at the specified index is set to 1 or not.
func IsSet(index uint8, value uint32) bool {
	return ((value >> index) & 1) == 1
}

// IsSet64 is IsSet for 64 bit masks.
func IsSet64(index uint8, value uint64) bool {
	return ((value >> index) & 1) == 1
}

// Clear will return the passed value with the bit at the specified index set to 0.
func Clear(index uint8, value uint32) uint32 {
	return value &^ (1 << index)
}

// Set will return the passed value with the bit at the specified index set to 1.
func Set(index uint8, value uint32) uint32 {
	return value | (1 << index)
}

// Set64 is Set for 64 bit masks.
func Set64(index uint8, value uint64) uint64 {
	return value | (1 << index)
}

// Clear64 is Clear for 64 bit masks.
func Clear64(index uint8, value uint64) uint64 {
	return value &^ (1 << index)
}

// Mask returns a mask with bits highBit to lowBit (inclusive) set.
// Example: Mask(11, 8) -> 0x00000F00
func Mask(highBit, lowBit uint8) uint32 {
	width := highBit - lowBit + 1
	if width >= 32 {
		return 0xFFFFFFFF
	}
	return ((1 << width) - 1) << lowBit
}

// ExtractBits extracts bits from highBit to lowBit (inclusive)
// Example: ExtractBits(0b11010110, 6, 4) -> 0b101 (extracts bits 6, 5, 4)
func ExtractBits(value uint32, highBit, lowBit uint8) uint32 {
	return (value & Mask(highBit, lowBit)) >> lowBit
}

// InsertBits returns value with bits highBit to lowBit replaced by field.
// Bits of field that do not fit in the range are dropped.
func InsertBits(value uint32, highBit, lowBit uint8, field uint32) uint32 {
	mask := Mask(highBit, lowBit)
	return (value &^ mask) | ((field << lowBit) & mask)
}

// Count64 returns the number of set bits in a 64 bit mask.
func Count64(value uint64) int {
	n := 0
	for value != 0 {
		value &= value - 1
		n++
	}
	return n
}
