package dsmt

import (
	"fmt"
	"strings"
)

// Node is an element of an immutable formula DAG. The set of node types is
// closed: only the types in this file implement it.
type Node interface {
	fmt.Stringer

	Kind() Kind
	isNode()
}

/*
 *  Variables
 */

// BoolVar is a propositional variable. Nodes with the same ID denote the same
// variable.
type BoolVar struct {
	ID uint
}

// BVVar is a bit-vector variable of a fixed width.
type BVVar struct {
	ID    uint
	Width uint
}

// ArrayVar is an array variable mapping IndexWidth-bit indices to
// ElemWidth-bit elements.
type ArrayVar struct {
	ID         uint
	IndexWidth uint
	ElemWidth  uint
}

func (BoolVar) Kind() Kind  { return TY_BOOL_VAR }
func (BVVar) Kind() Kind    { return TY_BV_VAR }
func (ArrayVar) Kind() Kind { return TY_ARRAY_VAR }

func (v BoolVar) String() string  { return fmt.Sprintf("p%d", v.ID) }
func (v BVVar) String() string    { return fmt.Sprintf("v%d[%d]", v.ID, v.Width) }
func (v ArrayVar) String() string { return fmt.Sprintf("a%d[%d:%d]", v.ID, v.IndexWidth, v.ElemWidth) }

/*
 *  Literals
 */

// UintLit is a bit-vector literal given by an unsigned magnitude. Bits above
// Width are dropped.
type UintLit struct {
	Value uint64
	Width uint
}

// SintLit is a bit-vector literal given by a signed magnitude, encoded in
// two's complement.
type SintLit struct {
	Value int64
	Width uint
}

// BinLit is a bit-vector literal written as binary digits, most significant
// first. Its width is the number of digits.
type BinLit struct {
	Digits string
}

// HexLit is a bit-vector literal written as hexadecimal digits, most
// significant first. Its width is four bits per digit.
type HexLit struct {
	Digits string
}

func (UintLit) Kind() Kind { return TY_BVUINT }
func (SintLit) Kind() Kind { return TY_BVSINT }
func (BinLit) Kind() Kind  { return TY_BVBIN }
func (HexLit) Kind() Kind  { return TY_BVHEX }

func (l UintLit) String() string { return fmt.Sprintf("(_ bv%d %d)", l.Value, l.Width) }
func (l SintLit) String() string { return fmt.Sprintf("(bvsint %d %d)", l.Value, l.Width) }
func (l BinLit) String() string  { return "#b" + l.Digits }
func (l HexLit) String() string  { return "#x" + l.Digits }

/*
 *  Width parameterized operators
 */

// Extract selects bits Upper down to Lower (inclusive) of Operand.
type Extract struct {
	Upper   uint
	Lower   uint
	Operand Node
}

// Extend widens Operand by Width bits, copying the sign bit when Signed is
// set and padding with zeros otherwise.
type Extend struct {
	Signed  bool
	Width   uint
	Operand Node
}

func (Extract) Kind() Kind { return TY_EXTRACT }

func (e Extend) Kind() Kind {
	if e.Signed {
		return TY_SIGN_EXTEND
	}
	return TY_ZERO_EXTEND
}

func (e Extract) String() string {
	return fmt.Sprintf("((_ extract %d %d) %s)", e.Upper, e.Lower, nodeString(e.Operand))
}

func (e Extend) String() string {
	return fmt.Sprintf("((_ %s %d) %s)", e.Kind(), e.Width, nodeString(e.Operand))
}

// ZeroExtend returns n padded with width zero bits.
func ZeroExtend(width uint, n Node) Extend {
	return Extend{Width: width, Operand: n}
}

// SignExtend returns n widened by width copies of its sign bit.
func SignExtend(width uint, n Node) Extend {
	return Extend{Signed: true, Width: width, Operand: n}
}

/*
 *  Already evaluated terms
 */

// Resolved embeds a handle returned by a previous evaluation into a new
// formula. Evaluating it yields the handle itself.
type Resolved struct {
	Handle Handle
}

func (Resolved) Kind() Kind { return TY_RESOLVED }

func (r Resolved) String() string { return fmt.Sprintf("<%v>", r.Handle) }

// Term wraps h so that it can be used as an operand.
func Term(h Handle) Resolved {
	return Resolved{Handle: h}
}

/*
 *  Generic operators
 */

// Op applies the operator Tag to Operands. len(Operands) must equal
// Tag.Arity().
type Op struct {
	Tag      Kind
	Operands []Node
}

func (o Op) Kind() Kind { return o.Tag }

func (o Op) String() string {
	if len(o.Operands) == 0 {
		return o.Tag.String()
	}
	b := strings.Builder{}
	b.WriteString("(")
	b.WriteString(o.Tag.String())
	for _, c := range o.Operands {
		b.WriteString(" ")
		b.WriteString(nodeString(c))
	}
	b.WriteString(")")
	return b.String()
}

// Apply builds the generic operator node tag(operands...).
func Apply(tag Kind, operands ...Node) Op {
	return Op{Tag: tag, Operands: operands}
}

func (BoolVar) isNode()  {}
func (BVVar) isNode()    {}
func (ArrayVar) isNode() {}
func (UintLit) isNode()  {}
func (SintLit) isNode()  {}
func (BinLit) isNode()   {}
func (HexLit) isNode()   {}
func (Extract) isNode()  {}
func (Extend) isNode()   {}
func (Resolved) isNode() {}
func (Op) isNode()       {}

func nodeString(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}

// operands returns the sub-formulas of n that are evaluated recursively.
// Width and bit position parameters are not operands.
func operands(n Node) []Node {
	switch n.Kind() {
	case TY_EXTRACT:
		return []Node{n.(Extract).Operand}
	case TY_ZERO_EXTEND, TY_SIGN_EXTEND:
		return []Node{n.(Extend).Operand}
	}
	if o, ok := n.(Op); ok {
		return o.Operands
	}
	return nil
}
