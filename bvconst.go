package dsmt

import (
	"fmt"
	"math/big"
)

var zero = big.NewInt(0)
var one = big.NewInt(1)

// BVConst is a concrete bit pattern of a fixed size. It is the canonical
// reading of every literal encoding.
type BVConst struct {
	Size  uint
	mask  *big.Int
	value *big.Int
}

func makeMask(size uint) *big.Int {
	v := new(big.Int).Lsh(one, size)
	return v.Sub(v, one)
}

// MakeBVConst encodes value in two's complement on size bits.
func MakeBVConst(value int64, size uint) *BVConst {
	return MakeBVConstFromBigint(big.NewInt(value), size)
}

// MakeBVConstFromUint64 keeps the low size bits of value.
func MakeBVConstFromUint64(value uint64, size uint) *BVConst {
	return MakeBVConstFromBigint(new(big.Int).SetUint64(value), size)
}

// MakeBVConstFromBigint encodes value on size bits. Negative values are
// encoded in two's complement, out of range values are truncated. It returns
// nil when size is zero.
func MakeBVConstFromBigint(value *big.Int, size uint) *BVConst {
	if size == 0 {
		return nil
	}

	mask := makeMask(size)
	v := new(big.Int).Set(value)
	if v.Cmp(zero) < 0 {
		v.Neg(v)
		v.Sub(v, one)
		v.Sub(mask, v)
	}
	v.And(v, mask)
	return &BVConst{Size: size, mask: mask, value: v}
}

// MakeBVConstFromString parses digits in the given base (2 or 16). The size
// is implied by the number of digits.
func MakeBVConstFromString(digits string, base int) (*BVConst, error) {
	var digitBits uint
	switch base {
	case 2:
		digitBits = 1
	case 16:
		digitBits = 4
	default:
		return nil, fmt.Errorf("%w: unsupported base %d", ErrLiteral, base)
	}
	if len(digits) == 0 {
		return nil, fmt.Errorf("%w: empty digit string", ErrLiteral)
	}
	if digits[0] == '+' || digits[0] == '-' {
		return nil, fmt.Errorf("%w: signed digit string %q", ErrLiteral, digits)
	}

	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("%w: invalid base %d digits %q", ErrLiteral, base, digits)
	}
	return MakeBVConstFromBigint(v, uint(len(digits))*digitBits), nil
}

// MakeBVConstFromBits builds a constant from bits, least significant first.
func MakeBVConstFromBits(bits []bool) *BVConst {
	v := big.NewInt(0)
	for i, b := range bits {
		if b {
			v.SetBit(v, i, 1)
		}
	}
	return MakeBVConstFromBigint(v, uint(len(bits)))
}

// Bit returns bit i, counting from the least significant one.
func (bv *BVConst) Bit(i uint) bool {
	return bv.value.Bit(int(i)) == 1
}

// BigInt returns a copy of the unsigned value.
func (bv *BVConst) BigInt() *big.Int {
	return new(big.Int).Set(bv.value)
}

func (bv *BVConst) IsNegative() bool {
	return bv.value.Bit(int(bv.Size)-1) == 1
}

func (bv *BVConst) IsZero() bool {
	return bv.value.Cmp(zero) == 0
}

func (bv *BVConst) Copy() *BVConst {
	return &BVConst{
		Size:  bv.Size,
		mask:  new(big.Int).Set(bv.mask),
		value: new(big.Int).Set(bv.value),
	}
}

func (bv *BVConst) String() string {
	return fmt.Sprintf("<BV%d 0x%x>", bv.Size, bv.value)
}

// Eq reports whether bv and o have the same size and bits.
func (bv *BVConst) Eq(o *BVConst) bool {
	return bv.Size == o.Size && bv.value.Cmp(o.value) == 0
}

func (bv *BVConst) FitInLong() bool {
	return bv.Size <= 64
}

func (bv *BVConst) AsULong() uint64 {
	// if it does not `FitInLong`, the high bits are lost
	return bv.value.Uint64()
}

func (bv *BVConst) AsLong() int64 {
	// if it does not `FitInLong`, result is undefined
	if !bv.IsNegative() {
		return bv.value.Int64()
	}
	v := new(big.Int).Sub(bv.mask, bv.value)
	v.Add(v, one)
	return -v.Int64()
}

/*
 *  Arithmetic. Binary operations modify the receiver and fail when the
 *  sizes differ.
 */

func (bv *BVConst) sameSize(o *BVConst) error {
	if bv.Size != o.Size {
		return fmt.Errorf("different sizes %d and %d", bv.Size, o.Size)
	}
	return nil
}

func (bv *BVConst) Not() {
	bv.value.Not(bv.value)
	bv.value.And(bv.value, bv.mask)
}

func (bv *BVConst) Neg() {
	bv.value.Neg(bv.value)
	bv.value.And(bv.value, bv.mask)
}

func (bv *BVConst) Add(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value.Add(bv.value, o.value)
	bv.value.And(bv.value, bv.mask)
	return nil
}

func (bv *BVConst) Sub(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value.Sub(bv.value, o.value)
	bv.value.And(bv.value, bv.mask)
	return nil
}

func (bv *BVConst) Mul(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value.Mul(bv.value, o.value)
	bv.value.And(bv.value, bv.mask)
	return nil
}

// UDiv divides as unsigned numbers. Dividing by zero gives all ones.
func (bv *BVConst) UDiv(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	if o.IsZero() {
		bv.value.Set(bv.mask)
		return nil
	}
	bv.value.Quo(bv.value, o.value)
	return nil
}

// URem is the unsigned remainder. The remainder of a division by zero is
// the dividend.
func (bv *BVConst) URem(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	if o.IsZero() {
		return nil
	}
	bv.value.Rem(bv.value, o.value)
	return nil
}

// SDiv divides as two's complement numbers, rounding towards zero.
func (bv *BVConst) SDiv(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	negative := bv.IsNegative() != o.IsNegative()
	x, y := bv.abs(), o.abs()
	if err := x.UDiv(y); err != nil {
		return err
	}
	if negative {
		x.Neg()
	}
	bv.value = x.value
	return nil
}

// SRem is the two's complement remainder; its sign follows the dividend.
func (bv *BVConst) SRem(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	negative := bv.IsNegative()
	x, y := bv.abs(), o.abs()
	if err := x.URem(y); err != nil {
		return err
	}
	if negative {
		x.Neg()
	}
	bv.value = x.value
	return nil
}

func (bv *BVConst) abs() *BVConst {
	c := bv.Copy()
	if c.IsNegative() {
		c.Neg()
	}
	return c
}

func (bv *BVConst) And(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value.And(bv.value, o.value)
	return nil
}

func (bv *BVConst) Or(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value.Or(bv.value, o.value)
	return nil
}

func (bv *BVConst) Xor(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value.Xor(bv.value, o.value)
	return nil
}

func (bv *BVConst) AShr(n uint) {
	negative := bv.IsNegative()
	if n >= bv.Size {
		bv.value.SetInt64(0)
		if negative {
			bv.value.Set(bv.mask)
		}
		return
	}

	bv.value.Rsh(bv.value, n)
	if negative {
		mask := makeMask(n)
		mask.Lsh(mask, bv.Size-n)
		bv.value.Or(bv.value, mask)
	}
}

func (bv *BVConst) LShr(n uint) {
	if n >= bv.Size {
		bv.value.SetInt64(0)
		return
	}
	bv.value.Rsh(bv.value, n)
}

func (bv *BVConst) Shl(n uint) {
	if n >= bv.Size {
		bv.value.SetInt64(0)
		return
	}
	bv.value.Lsh(bv.value, n)
	bv.value.And(bv.value, bv.mask)
}

// Concat appends o as the least significant bits.
func (bv *BVConst) Concat(o *BVConst) {
	bv.ZExt(o.Size)
	bv.value.Lsh(bv.value, o.Size)
	bv.value.Or(bv.value, o.value)
}

// Slice returns bits high down to low, or nil if the range is invalid.
func (bv *BVConst) Slice(high uint, low uint) *BVConst {
	if high < low || high >= bv.Size {
		return nil
	}
	v := new(big.Int).Rsh(bv.value, low)
	return MakeBVConstFromBigint(v, high-low+1)
}

func (bv *BVConst) ZExt(bits uint) {
	bv.Size += bits
	bv.mask = makeMask(bv.Size)
}

func (bv *BVConst) SExt(bits uint) {
	if !bv.IsNegative() {
		bv.ZExt(bits)
		return
	}

	newBits := makeMask(bits)
	newBits.Lsh(newBits, bv.Size)
	bv.value.Or(bv.value, newBits)

	bv.Size += bits
	bv.mask = makeMask(bv.Size)
}

// Ult is the unsigned less-than comparison.
func (bv *BVConst) Ult(o *BVConst) bool {
	return bv.value.Cmp(o.value) < 0
}

// Slt is the two's complement less-than comparison.
func (bv *BVConst) Slt(o *BVConst) bool {
	if bv.IsNegative() != o.IsNegative() {
		return bv.IsNegative()
	}
	return bv.Ult(o)
}
