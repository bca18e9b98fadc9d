package merkletree

// LengthInBase returns the number of base-`base` digits of n.
//
// For example 13 is 111 in base 3 (length 3), 23 in base 5 (length 2) and
// D in base 16 (length 1). The length of 0 is always 0.
func LengthInBase(n, base int) int {
	length := 0
	for n > 0 {
		n /= base
		length++
	}
	return length
}

// PadIndex maps a position of a level's infinite continuation back to the
// stored position holding the same value.
//
// Positions up to maxValidIndex map to themselves. Positions past it point
// back into the previous full arity-block at the most significant base-arity
// digit where index exceeds maxValidIndex:
//
//	0 1 2 | 3 4 5 | 6 7 8 || 9 10 11 | ...                        <- stored
//	0 1 2 | 3 4 5 | 6 7 8 || 9 10 11 |  9 10 11 |  9 10 11 || ... <- result
//	0 1 2 | 3 4 5 | 6 7 8 || 9 10 11 | 12 13 14 | 15 16 17 || ... <- index
func PadIndex(index, maxValidIndex, arity int) int {
	if index <= maxValidIndex {
		return index
	}

	shift := 1
	tail := 0
	curTail := 0
	head := 0

	for index > 0 {
		tailDigit := index % arity
		headDigit := maxValidIndex % arity

		curTail += tailDigit * shift
		head += headDigit * shift

		if tailDigit < headDigit {
			tail = curTail
			head = 0
		}

		shift *= arity
		index /= arity
		maxValidIndex /= arity
	}

	return head + tail
}

// intPow returns base**exp for small non-negative exponents.
func intPow(base, exp int) int {
	ret := 1
	for ; exp > 0; exp-- {
		ret *= base
	}
	return ret
}
