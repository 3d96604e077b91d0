package dsmt

import (
	"strings"
)

// Result is an assignment read back from a backend: either a scalar Tribool
// or a sequence of Tribool bits. Bits are stored least significant first.
type Result struct {
	scalar Tribool
	bits   []Tribool
	vector bool
}

// ScalarResult wraps a single truth value.
func ScalarResult(t Tribool) Result {
	return Result{scalar: t}
}

// BitsResult wraps bits, least significant first. The slice is copied.
func BitsResult(bits []Tribool) Result {
	return Result{bits: append([]Tribool(nil), bits...), vector: true}
}

// ConstResult wraps a fully known bit pattern.
func ConstResult(c *BVConst) Result {
	bits := make([]Tribool, c.Size)
	for i := uint(0); i < c.Size; i++ {
		bits[i] = TriboolOf(c.Bit(i))
	}
	return Result{bits: bits, vector: true}
}

// UnknownResult is the scalar unknown assignment.
func UnknownResult() Result {
	return Result{scalar: Unknown}
}

// UnknownBits is an assignment of width unknown bits.
func UnknownBits(width uint) Result {
	bits := make([]Tribool, width)
	for i := range bits {
		bits[i] = Unknown
	}
	return Result{bits: bits, vector: true}
}

// IsVector reports whether r holds a bit sequence.
func (r Result) IsVector() bool {
	return r.vector
}

// Width is the number of bits, or 1 for scalars.
func (r Result) Width() uint {
	if !r.vector {
		return 1
	}
	return uint(len(r.bits))
}

// Bits returns the bit sequence, least significant first. A scalar is
// returned as a single bit.
func (r Result) Bits() []Tribool {
	if !r.vector {
		return []Tribool{r.scalar}
	}
	return append([]Tribool(nil), r.bits...)
}

// Tribool returns the scalar value. A vector is True or False only if it has
// exactly one bit and that bit is known.
func (r Result) Tribool() Tribool {
	if !r.vector {
		return r.scalar
	}
	if len(r.bits) == 1 {
		return r.bits[0]
	}
	return Unknown
}

// IsKnown reports whether every bit is determined.
func (r Result) IsKnown() bool {
	if !r.vector {
		return r.scalar.IsKnown()
	}
	for _, b := range r.bits {
		if !b.IsKnown() {
			return false
		}
	}
	return true
}

// Bool converts a determined scalar. ok is false if the value is unknown.
func (r Result) Bool() (val bool, ok bool) {
	switch r.Tribool() {
	case True:
		return true, true
	case False:
		return false, true
	}
	return false, false
}

// BVConst converts a fully determined result to a constant.
func (r Result) BVConst() (*BVConst, bool) {
	if !r.IsKnown() || r.Width() == 0 {
		return nil, false
	}
	bits := r.Bits()
	values := make([]bool, len(bits))
	for i, b := range bits {
		values[i] = b == True
	}
	return MakeBVConstFromBits(values), true
}

// Uint64 converts a fully determined result of at most 64 bits.
func (r Result) Uint64() (uint64, bool) {
	c, ok := r.BVConst()
	if !ok || !c.FitInLong() {
		return 0, false
	}
	return c.AsULong(), true
}

// Int64 converts a fully determined result of at most 64 bits, reading it in
// two's complement.
func (r Result) Int64() (int64, bool) {
	c, ok := r.BVConst()
	if !ok || !c.FitInLong() {
		return 0, false
	}
	return c.AsLong(), true
}

// Fill returns a copy of r where unknown bits are replaced by b.
func (r Result) Fill(b bool) Result {
	def := TriboolOf(b)
	if !r.vector {
		if r.scalar.IsKnown() {
			return r
		}
		return ScalarResult(def)
	}
	bits := r.Bits()
	for i := range bits {
		if !bits[i].IsKnown() {
			bits[i] = def
		}
	}
	return Result{bits: bits, vector: true}
}

// String prints scalars as 0, 1 or X and vectors most significant bit first.
func (r Result) String() string {
	if !r.vector {
		return r.scalar.String()
	}
	b := strings.Builder{}
	for i := len(r.bits) - 1; i >= 0; i-- {
		b.WriteString(r.bits[i].String())
	}
	return b.String()
}
