package hasher

import (
	"encoding/binary"
	"hash/fnv"
)

// UnsecureHasher is a deterministic FNV-1a based hasher over uint64 nodes.
// It is NOT cryptographically secure and is intended for tests and local
// experiments where reproducible hashes are all that matters.
type UnsecureHasher struct {
	arity int
	inner uint64
	init  bool
}

var _ DataHasher[uint64, uint64] = (*UnsecureHasher)(nil)
var _ CloneableHasher[uint64] = (*UnsecureHasher)(nil)

// NewUnsecureHasher creates an unsecure hasher with the given fan-out.
func NewUnsecureHasher(arity int) *UnsecureHasher {
	return &UnsecureHasher{arity: arity}
}

func (u *UnsecureHasher) HashArityOne(h uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h)
	f := fnv.New64a()
	if u.init {
		var prev [8]byte
		binary.LittleEndian.PutUint64(prev[:], u.inner)
		_, _ = f.Write(prev[:])
	}
	_, _ = f.Write(buf[:])
	u.inner = f.Sum64()
	u.init = true
}

func (u *UnsecureHasher) FinishArity() uint64 {
	ret := u.inner
	u.inner = 0
	u.init = false
	return ret
}

func (u *UnsecureHasher) Arity() int { return u.arity }

func (u *UnsecureHasher) IsTheSame(other ArityHasher[uint64]) bool {
	o, ok := other.(*UnsecureHasher)
	return ok && o.arity == u.arity
}

func (u *UnsecureHasher) HashData(data uint64) uint64 {
	u.HashArityOne(data)
	return u.FinishArity()
}

func (u *UnsecureHasher) CloneHasher() ArityHasher[uint64] {
	return NewUnsecureHasher(u.arity)
}

// SumHasher is a degenerate additive hasher: the hash of a group is the sum
// of its children and the hash of a datum is the datum itself. It makes tree
// levels human-checkable in tests.
type SumHasher struct {
	arity int
	sum   uint64
}

var _ DataHasher[uint64, uint64] = (*SumHasher)(nil)
var _ CloneableHasher[uint64] = (*SumHasher)(nil)

// NewSumHasher creates an additive hasher with the given fan-out.
func NewSumHasher(arity int) *SumHasher {
	return &SumHasher{arity: arity}
}

func (s *SumHasher) HashArityOne(h uint64) { s.sum += h }

func (s *SumHasher) FinishArity() uint64 {
	ret := s.sum
	s.sum = 0
	return ret
}

func (s *SumHasher) Arity() int { return s.arity }

func (s *SumHasher) IsTheSame(other ArityHasher[uint64]) bool {
	o, ok := other.(*SumHasher)
	return ok && o.arity == s.arity
}

func (s *SumHasher) HashData(data uint64) uint64 { return data }

func (s *SumHasher) CloneHasher() ArityHasher[uint64] {
	return NewSumHasher(s.arity)
}
