package dsmt

import (
	"fmt"
)

// Payload is the normalized, kind specific argument of a Backend.Create call
// that is not itself a term. Generic operators carry no payload.
type Payload interface {
	isPayload()
}

// Symbol declares a fresh variable. Width is set for bit-vector variables,
// IndexWidth and ElemWidth for arrays.
type Symbol struct {
	ID         uint
	Width      uint
	IndexWidth uint
	ElemWidth  uint
}

// Unsigned is an unsigned literal magnitude together with its width.
type Unsigned struct {
	Value uint64
	Width uint
}

// Signed is a signed literal magnitude together with its width.
type Signed struct {
	Value int64
	Width uint
}

// Digits is a literal digit string passed verbatim. Base is 2 or 16.
type Digits struct {
	Base int
	Text string
}

// Extraction carries the bit positions of an extract.
type Extraction struct {
	Upper uint
	Lower uint
}

// Extension carries the number of bits added by a zero or sign extension.
type Extension struct {
	Width uint
}

func (Symbol) isPayload()     {}
func (Unsigned) isPayload()   {}
func (Signed) isPayload()     {}
func (Digits) isPayload()     {}
func (Extraction) isPayload() {}
func (Extension) isPayload()  {}

// Literal is a payload denoting a bit-vector constant.
type Literal interface {
	Payload

	Bits() (*BVConst, error)
}

func (u Unsigned) Bits() (*BVConst, error) {
	if u.Width == 0 {
		return nil, fmt.Errorf("%w: zero width unsigned literal", ErrLiteral)
	}
	return MakeBVConstFromUint64(u.Value, u.Width), nil
}

func (s Signed) Bits() (*BVConst, error) {
	if s.Width == 0 {
		return nil, fmt.Errorf("%w: zero width signed literal", ErrLiteral)
	}
	return MakeBVConst(s.Value, s.Width), nil
}

func (d Digits) Bits() (*BVConst, error) {
	return MakeBVConstFromString(d.Text, d.Base)
}

// normalize maps the four literal node encodings to their payloads. It is
// only called for literal kinds.
func normalize(n Node) Literal {
	switch n.Kind() {
	case TY_BVUINT:
		l := n.(UintLit)
		return Unsigned{Value: l.Value, Width: l.Width}
	case TY_BVSINT:
		l := n.(SintLit)
		return Signed{Value: l.Value, Width: l.Width}
	case TY_BVBIN:
		l := n.(BinLit)
		return Digits{Base: 2, Text: l.Digits}
	case TY_BVHEX:
		l := n.(HexLit)
		return Digits{Base: 16, Text: l.Digits}
	default:
		panic(fmt.Sprintf("normalize: %s is not a literal", n.Kind()))
	}
}
