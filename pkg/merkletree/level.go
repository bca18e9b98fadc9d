package merkletree

// Lvl is a read-only view of one tree level under canonical equality.
//
// A non-empty level is logically infinite: its semantics are its
// continuation, the unique extension to the next whole arity-block at every
// radix obtained by repeating the trailing sibling window. Two levels are
// equal iff their continuations coincide. For arity 3 the following levels
// are equal:
//
//	|| 0 1 2 | 3 4
//	|| 0 1 2 | 3 4 4 | 3 4 4 ||
//
// while || 0 1 2 | 3 4 4 | 3 3 4 || is not equal to them, and neither is
// || 0 1 2 | 3 4 4 | 3 4 4 || 0 1 2 | 3 4 4 | 3 4 4 ||, whose length calls
// for one more tree level.
type Lvl[H comparable] struct {
	lvl   []H
	arity int
}

// NewLvl wraps a level slice in a canonical view. An empty slice produces
// the empty view.
func NewLvl[H comparable](lvl []H, arity int) Lvl[H] {
	if len(lvl) == 0 {
		lvl = nil
	}
	return Lvl[H]{lvl: lvl, arity: arity}
}

// NewEmptyLvl returns the empty view.
func NewEmptyLvl[H comparable](arity int) Lvl[H] {
	return Lvl[H]{arity: arity}
}

// Len returns the stored length of the level; 0 for the empty view.
func (l Lvl[H]) Len() int { return len(l.lvl) }

// IsEmpty reports whether the view holds no elements.
func (l Lvl[H]) IsEmpty() bool { return l.lvl == nil }

// ToSlice returns the underlying level slice. The slice is shared with the
// tree and must not be mutated.
func (l Lvl[H]) ToSlice() []H { return l.lvl }

// Continuation returns the level extended to the next power of the arity by
// repeating trailing sibling windows, or nil for the empty view.
//
// The extension works radix by radix, least significant first: at radix j
// the trailing window of size arity**j is repeated (arity-1)-digit times,
// where digit is the j-th base-arity digit of len-1.
func (l Lvl[H]) Continuation() []H {
	if l.IsEmpty() {
		return nil
	}
	return LvlContinuation(l.lvl, l.arity)
}

// LvlContinuation is Continuation over a raw slice. The input is not
// modified.
func LvlContinuation[H any](lvl []H, arity int) []H {
	out := make([]H, len(lvl), intPow(arity, LengthInBase(len(lvl)-1, arity)))
	copy(out, lvl)

	arityMask := len(lvl) - 1
	winSz := 1
	for arityMask > 0 {
		amountOfWin := (arity - 1) - arityMask%arity
		curLen := len(out)

		for i := 0; i < amountOfWin; i++ {
			out = append(out, out[curLen-winSz:curLen]...)
		}

		arityMask /= arity
		winSz *= arity
	}
	return out
}

// Eq reports canonical equality of two level views.
//
// Both empty compare equal; exactly one empty compares unequal. For views of
// different stored lengths three regimes are checked: the target heights
// must agree, every position past the shorter view must repeat the trailing
// window of the shorter one, and a possibly partial last padding block of
// the longer view must match the continuation of the shorter.
func (l Lvl[H]) Eq(other Lvl[H]) bool {
	if l.IsEmpty() || other.IsEmpty() {
		return l.IsEmpty() && other.IsEmpty()
	}
	arity := l.arity

	a, b := l.lvl, other.lvl
	if len(a) > len(b) {
		a, b = b, a
	}
	aLen := len(a)
	bLen := len(b)

	if aLen != bLen {
		// Different digit counts mean different tree heights.
		arityLen := LengthInBase(aLen-1, arity)
		if arityLen != LengthInBase(bLen-1, arity) {
			return false
		}

		// Every excess element of b must repeat the corresponding trailing
		// window of the shared prefix. Window sizes follow the base-arity
		// digits of aLen-1: digit d at radix j gives (arity-1)-d repetitions
		// of the window of size arity**j.
		aIndex := aLen - 1
		bIndex := aLen
		windowSz := 1
	excess:
		for aIndex != 0 {
			repetitions := (arity - 1) - aIndex%arity
			for i := 1; i <= repetitions; i++ {
				rIndex := bIndex - i*windowSz
				lIndex := bIndex
				for j := 0; j < windowSz; j++ {
					if b[lIndex+j] != b[rIndex+j] {
						return false
					}
					bIndex++
					if bIndex == bLen {
						break excess
					}
				}
			}
			windowSz *= arity
			aIndex /= arity
		}

		// The last, possibly partial padding block of b must agree with the
		// continuation of a position-wise:
		//	|| 0 1 2 | 3 4 _ | _ _ _ ||
		// is not equal to
		//	|| 0 1 2 | 3 4 4 | 3 _ _ ||
		paddingSz := intPow(arity, arityLen-1)
		if bLen%paddingSz != 0 {
			aPosStart := ((aLen - 1) / paddingSz) * paddingSz
			bPosStart := ((bLen - 1) / paddingSz) * paddingSz

			for i := 0; i < paddingSz; i++ {
				lIndex := PadIndex(aPosStart+i, aLen-1, arity)
				rIndex := PadIndex(bPosStart+i, bLen-1, arity)
				if b[lIndex] != b[rIndex] {
					return false
				}
			}
		}
	}

	for i := 0; i < aLen; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
