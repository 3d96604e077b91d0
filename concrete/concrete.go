// Package concrete is a dsmt.Backend that evaluates formulas under a fixed
// assignment of their variables instead of searching for one. Solve reports
// whether the assignment satisfies the constraints.
//
// Unassigned variables are unknown, and unknowns propagate: a bit-vector
// operation with an unknown operand is unknown, while boolean connectives use
// three valued logic.
package concrete

import (
	"errors"
	"fmt"

	"github.com/borzacchiello/dsmt"
)

// Ensure interpreter implements interface.
var _ dsmt.Backend = (*Interpreter)(nil)

// ErrUndetermined is returned by Solve when a constraint depends on an
// unassigned variable.
var ErrUndetermined = errors.New("concrete: undetermined")

// Assignment maps variable ids to values. Array variables list the elements
// they define; the other elements are unknown.
type Assignment struct {
	Bools  map[uint]bool
	BVs    map[uint]*dsmt.BVConst
	Arrays map[uint]map[uint64]*dsmt.BVConst
}

type sort int

const (
	sortBool sort = iota
	sortBV
	sortArray
)

// value is the handle type of this backend.
type value struct {
	sort sort

	b dsmt.Tribool // sortBool

	bv    *dsmt.BVConst // sortBV, nil when unknown
	width uint

	elems map[uint64]*dsmt.BVConst // sortArray, nil when unknown
	index uint
}

func (v *value) String() string {
	switch v.sort {
	case sortBool:
		return v.b.String()
	case sortBV:
		if v.bv == nil {
			return dsmt.UnknownBits(v.width).String()
		}
		return v.bv.String()
	}
	return fmt.Sprintf("<array %d:%d>", v.index, v.width)
}

func boolValue(t dsmt.Tribool) *value {
	return &value{sort: sortBool, b: t}
}

func bvValue(c *dsmt.BVConst, width uint) *value {
	return &value{sort: sortBV, bv: c, width: width}
}

// Interpreter is a dsmt.Backend over an Assignment.
type Interpreter struct {
	assign Assignment

	assertions  []*value
	assumptions []*value
}

// NewInterpreter returns an Interpreter reading variables from a. The maps of
// a are not copied.
func NewInterpreter(a Assignment) *Interpreter {
	return &Interpreter{assign: a}
}

func asValue(h dsmt.Handle, want sort) (*value, error) {
	v, ok := h.(*value)
	if !ok {
		return nil, fmt.Errorf("concrete: foreign handle %T", h)
	}
	if v.sort != want {
		return nil, fmt.Errorf("concrete: expected sort %d, got %d", want, v.sort)
	}
	return v, nil
}

func asValues(args []dsmt.Handle, want sort) ([]*value, error) {
	res := make([]*value, len(args))
	for i, a := range args {
		v, err := asValue(a, want)
		if err != nil {
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

func (in *Interpreter) Create(kind dsmt.Kind, p dsmt.Payload, args ...dsmt.Handle) (dsmt.Handle, error) {
	v, err := in.create(kind, p, args)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (in *Interpreter) create(kind dsmt.Kind, p dsmt.Payload, args []dsmt.Handle) (*value, error) {
	switch kind {
	case dsmt.TY_BOOL_VAR, dsmt.TY_BV_VAR, dsmt.TY_ARRAY_VAR:
		return in.variable(kind, p.(dsmt.Symbol))
	case dsmt.TY_BVUINT, dsmt.TY_BVSINT, dsmt.TY_BVBIN, dsmt.TY_BVHEX:
		c, err := p.(dsmt.Literal).Bits()
		if err != nil {
			return nil, err
		}
		return bvValue(c, c.Size), nil
	case dsmt.TY_EXTRACT:
		x := p.(dsmt.Extraction)
		v, err := asValue(args[0], sortBV)
		if err != nil {
			return nil, err
		}
		if x.Lower > x.Upper || x.Upper >= v.width {
			return nil, fmt.Errorf("concrete: extract %d:%d out of %d bits", x.Upper, x.Lower, v.width)
		}
		if v.bv == nil {
			return bvValue(nil, x.Upper-x.Lower+1), nil
		}
		return bvValue(v.bv.Slice(x.Upper, x.Lower), x.Upper-x.Lower+1), nil
	case dsmt.TY_ZERO_EXTEND, dsmt.TY_SIGN_EXTEND:
		x := p.(dsmt.Extension)
		v, err := asValue(args[0], sortBV)
		if err != nil {
			return nil, err
		}
		if v.bv == nil {
			return bvValue(nil, v.width+x.Width), nil
		}
		c := v.bv.Copy()
		if kind == dsmt.TY_SIGN_EXTEND {
			c.SExt(x.Width)
		} else {
			c.ZExt(x.Width)
		}
		return bvValue(c, c.Size), nil
	case dsmt.TY_TRUE:
		return boolValue(dsmt.True), nil
	case dsmt.TY_FALSE:
		return boolValue(dsmt.False), nil
	case dsmt.TY_BIT0:
		return bvValue(dsmt.MakeBVConst(0, 1), 1), nil
	case dsmt.TY_BIT1:
		return bvValue(dsmt.MakeBVConst(1, 1), 1), nil
	case dsmt.TY_EQUAL, dsmt.TY_NEQUAL:
		eq, err := equal(args[0], args[1])
		if err != nil {
			return nil, err
		}
		if kind == dsmt.TY_NEQUAL {
			eq = eq.Not()
		}
		return boolValue(eq), nil
	case dsmt.TY_ITE:
		return ite(args[0], args[1], args[2])
	case dsmt.TY_SELECT:
		return sel(args[0], args[1])
	case dsmt.TY_STORE:
		return store(args[0], args[1], args[2])
	case dsmt.TY_NOT, dsmt.TY_AND, dsmt.TY_NAND, dsmt.TY_OR, dsmt.TY_NOR,
		dsmt.TY_XOR, dsmt.TY_XNOR, dsmt.TY_IMPLIES:
		return logic(kind, args)
	}
	if kind.IsOperator() {
		return bitvector(kind, args)
	}
	return nil, fmt.Errorf("concrete: %w: %s", dsmt.ErrUnsupported, kind)
}

func (in *Interpreter) variable(kind dsmt.Kind, sym dsmt.Symbol) (*value, error) {
	switch kind {
	case dsmt.TY_BOOL_VAR:
		if b, ok := in.assign.Bools[sym.ID]; ok {
			return boolValue(dsmt.TriboolOf(b)), nil
		}
		return boolValue(dsmt.Unknown), nil
	case dsmt.TY_BV_VAR:
		if sym.Width == 0 {
			return nil, fmt.Errorf("concrete: zero width variable %d", sym.ID)
		}
		c, ok := in.assign.BVs[sym.ID]
		if !ok {
			return bvValue(nil, sym.Width), nil
		}
		if c.Size != sym.Width {
			return nil, fmt.Errorf("concrete: variable %d has %d bits, assigned %d", sym.ID, sym.Width, c.Size)
		}
		return bvValue(c.Copy(), sym.Width), nil
	}

	elems := make(map[uint64]*dsmt.BVConst)
	for i, c := range in.assign.Arrays[sym.ID] {
		if sym.IndexWidth < 64 && i>>sym.IndexWidth != 0 {
			return nil, fmt.Errorf("concrete: array %d has %d bit indices, assigned index %d", sym.ID, sym.IndexWidth, i)
		}
		if c.Size != sym.ElemWidth {
			return nil, fmt.Errorf("concrete: array %d has %d bit elements, assigned %d", sym.ID, sym.ElemWidth, c.Size)
		}
		elems[i] = c.Copy()
	}
	return &value{sort: sortArray, elems: elems, index: sym.IndexWidth, width: sym.ElemWidth}, nil
}

func logic(kind dsmt.Kind, args []dsmt.Handle) (*value, error) {
	vs, err := asValues(args, sortBool)
	if err != nil {
		return nil, err
	}
	if kind == dsmt.TY_NOT {
		return boolValue(vs[0].b.Not()), nil
	}

	x, y := vs[0].b, vs[1].b
	var t dsmt.Tribool
	switch kind {
	case dsmt.TY_AND:
		t = x.And(y)
	case dsmt.TY_NAND:
		t = x.And(y).Not()
	case dsmt.TY_OR:
		t = x.Or(y)
	case dsmt.TY_NOR:
		t = x.Or(y).Not()
	case dsmt.TY_XOR:
		t = xor(x, y)
	case dsmt.TY_XNOR:
		t = xor(x, y).Not()
	case dsmt.TY_IMPLIES:
		t = x.Not().Or(y)
	default:
		panic("invalid logic kind")
	}
	return boolValue(t), nil
}

func xor(x, y dsmt.Tribool) dsmt.Tribool {
	if !x.IsKnown() || !y.IsKnown() {
		return dsmt.Unknown
	}
	return dsmt.TriboolOf(x != y)
}

func bitvector(kind dsmt.Kind, args []dsmt.Handle) (*value, error) {
	vs, err := asValues(args, sortBV)
	if err != nil {
		return nil, err
	}

	if len(vs) == 1 {
		x := vs[0]
		if kind != dsmt.TY_BVNOT && kind != dsmt.TY_BVNEG {
			return nil, fmt.Errorf("concrete: %w: %s", dsmt.ErrUnsupported, kind)
		}
		if x.bv == nil {
			return bvValue(nil, x.width), nil
		}
		c := x.bv.Copy()
		if kind == dsmt.TY_BVNOT {
			c.Not()
		} else {
			c.Neg()
		}
		return bvValue(c, x.width), nil
	}

	x, y := vs[0], vs[1]
	if kind == dsmt.TY_CONCAT {
		if x.bv == nil || y.bv == nil {
			return bvValue(nil, x.width+y.width), nil
		}
		c := x.bv.Copy()
		c.Concat(y.bv)
		return bvValue(c, c.Size), nil
	}
	if x.width != y.width {
		return nil, fmt.Errorf("concrete: different sizes %d and %d", x.width, y.width)
	}

	switch kind {
	case dsmt.TY_BVULT, dsmt.TY_BVULE, dsmt.TY_BVUGT, dsmt.TY_BVUGE,
		dsmt.TY_BVSLT, dsmt.TY_BVSLE, dsmt.TY_BVSGT, dsmt.TY_BVSGE:
		if x.bv == nil || y.bv == nil {
			return boolValue(dsmt.Unknown), nil
		}
		return boolValue(dsmt.TriboolOf(compare(kind, x.bv, y.bv))), nil
	case dsmt.TY_BVCOMP:
		if x.bv == nil || y.bv == nil {
			return bvValue(nil, 1), nil
		}
		if x.bv.Eq(y.bv) {
			return bvValue(dsmt.MakeBVConst(1, 1), 1), nil
		}
		return bvValue(dsmt.MakeBVConst(0, 1), 1), nil
	}

	if x.bv == nil || y.bv == nil {
		return bvValue(nil, x.width), nil
	}
	c := x.bv.Copy()
	switch kind {
	case dsmt.TY_BVAND:
		err = c.And(y.bv)
	case dsmt.TY_BVNAND:
		err = c.And(y.bv)
		c.Not()
	case dsmt.TY_BVOR:
		err = c.Or(y.bv)
	case dsmt.TY_BVNOR:
		err = c.Or(y.bv)
		c.Not()
	case dsmt.TY_BVXOR:
		err = c.Xor(y.bv)
	case dsmt.TY_BVXNOR:
		err = c.Xor(y.bv)
		c.Not()
	case dsmt.TY_BVADD:
		err = c.Add(y.bv)
	case dsmt.TY_BVSUB:
		err = c.Sub(y.bv)
	case dsmt.TY_BVMUL:
		err = c.Mul(y.bv)
	case dsmt.TY_BVUDIV:
		err = c.UDiv(y.bv)
	case dsmt.TY_BVUREM:
		err = c.URem(y.bv)
	case dsmt.TY_BVSDIV:
		err = c.SDiv(y.bv)
	case dsmt.TY_BVSREM:
		err = c.SRem(y.bv)
	case dsmt.TY_BVSHL:
		c.Shl(shiftAmount(y.bv))
	case dsmt.TY_BVLSHR:
		c.LShr(shiftAmount(y.bv))
	case dsmt.TY_BVASHR:
		c.AShr(shiftAmount(y.bv))
	default:
		return nil, fmt.Errorf("concrete: %w: %s", dsmt.ErrUnsupported, kind)
	}
	if err != nil {
		return nil, err
	}
	return bvValue(c, x.width), nil
}

// shiftAmount saturates at the width, which shifts every bit out.
func shiftAmount(c *dsmt.BVConst) uint {
	if !c.FitInLong() || c.AsULong() > uint64(c.Size) {
		return c.Size
	}
	return uint(c.AsULong())
}

func compare(kind dsmt.Kind, x, y *dsmt.BVConst) bool {
	switch kind {
	case dsmt.TY_BVULT:
		return x.Ult(y)
	case dsmt.TY_BVULE:
		return !y.Ult(x)
	case dsmt.TY_BVUGT:
		return y.Ult(x)
	case dsmt.TY_BVUGE:
		return !x.Ult(y)
	case dsmt.TY_BVSLT:
		return x.Slt(y)
	case dsmt.TY_BVSLE:
		return !y.Slt(x)
	case dsmt.TY_BVSGT:
		return y.Slt(x)
	case dsmt.TY_BVSGE:
		return !x.Slt(y)
	}
	panic("invalid comparison kind")
}

func equal(a, b dsmt.Handle) (dsmt.Tribool, error) {
	x, ok := a.(*value)
	if !ok {
		return dsmt.Unknown, fmt.Errorf("concrete: foreign handle %T", a)
	}
	y, err := asValue(b, x.sort)
	if err != nil {
		return dsmt.Unknown, err
	}

	switch x.sort {
	case sortBool:
		if !x.b.IsKnown() || !y.b.IsKnown() {
			return dsmt.Unknown, nil
		}
		return dsmt.TriboolOf(x.b == y.b), nil
	case sortBV:
		if x.width != y.width {
			return dsmt.Unknown, fmt.Errorf("concrete: different sizes %d and %d", x.width, y.width)
		}
		if x.bv == nil || y.bv == nil {
			return dsmt.Unknown, nil
		}
		return dsmt.TriboolOf(x.bv.Eq(y.bv)), nil
	}
	return arrayEqual(x, y)
}

func arrayEqual(x, y *value) (dsmt.Tribool, error) {
	if x.index != y.index || x.width != y.width {
		return dsmt.Unknown, fmt.Errorf("concrete: comparing arrays of different sorts")
	}
	if x == y {
		return dsmt.True, nil
	}
	if x.elems == nil || y.elems == nil {
		return dsmt.Unknown, nil
	}
	for i, c := range x.elems {
		if d, ok := y.elems[i]; ok && !c.Eq(d) {
			return dsmt.False, nil
		}
	}
	if x.index < 64 && uint64(len(x.elems)) == 1<<x.index && len(x.elems) == len(y.elems) {
		return dsmt.True, nil
	}
	return dsmt.Unknown, nil
}

func ite(c, a, b dsmt.Handle) (*value, error) {
	guard, err := asValue(c, sortBool)
	if err != nil {
		return nil, err
	}
	x, ok := a.(*value)
	if !ok {
		return nil, fmt.Errorf("concrete: foreign handle %T", a)
	}
	y, err := asValue(b, x.sort)
	if err != nil {
		return nil, err
	}
	if x.width != y.width || x.index != y.index {
		return nil, fmt.Errorf("concrete: ite branches of different sorts")
	}

	switch guard.b {
	case dsmt.True:
		return x, nil
	case dsmt.False:
		return y, nil
	}
	// both branches agree, the guard does not matter
	if eq, _ := equal(x, y); eq == dsmt.True {
		return x, nil
	}
	switch x.sort {
	case sortBool:
		return boolValue(dsmt.Unknown), nil
	case sortBV:
		return bvValue(nil, x.width), nil
	}
	return &value{sort: sortArray, index: x.index, width: x.width}, nil
}

func arrayIndex(a, i dsmt.Handle) (*value, *value, error) {
	arr, err := asValue(a, sortArray)
	if err != nil {
		return nil, nil, err
	}
	idx, err := asValue(i, sortBV)
	if err != nil {
		return nil, nil, err
	}
	if idx.width != arr.index {
		return nil, nil, fmt.Errorf("concrete: index of %d bits into array indexed by %d bits", idx.width, arr.index)
	}
	return arr, idx, nil
}

func sel(a, i dsmt.Handle) (*value, error) {
	arr, idx, err := arrayIndex(a, i)
	if err != nil {
		return nil, err
	}
	if arr.elems == nil || idx.bv == nil || !idx.bv.FitInLong() {
		return bvValue(nil, arr.width), nil
	}
	c, ok := arr.elems[idx.bv.AsULong()]
	if !ok {
		return bvValue(nil, arr.width), nil
	}
	return bvValue(c.Copy(), arr.width), nil
}

func store(a, i, v dsmt.Handle) (*value, error) {
	arr, idx, err := arrayIndex(a, i)
	if err != nil {
		return nil, err
	}
	val, err := asValue(v, sortBV)
	if err != nil {
		return nil, err
	}
	if val.width != arr.width {
		return nil, fmt.Errorf("concrete: storing %d bits into elements of %d bits", val.width, arr.width)
	}

	res := &value{sort: sortArray, index: arr.index, width: arr.width}
	if arr.elems == nil || idx.bv == nil || !idx.bv.FitInLong() {
		return res, nil
	}
	res.elems = make(map[uint64]*dsmt.BVConst, len(arr.elems)+1)
	for j, c := range arr.elems {
		res.elems[j] = c
	}
	if val.bv == nil {
		delete(res.elems, idx.bv.AsULong())
	} else {
		res.elems[idx.bv.AsULong()] = val.bv
	}
	return res, nil
}

func (in *Interpreter) Assertion(h dsmt.Handle) error {
	v, err := asValue(h, sortBool)
	if err != nil {
		return err
	}
	in.assertions = append(in.assertions, v)
	return nil
}

func (in *Interpreter) Assumption(h dsmt.Handle) error {
	v, err := asValue(h, sortBool)
	if err != nil {
		return err
	}
	in.assumptions = append(in.assumptions, v)
	return nil
}

// Solve reports whether every assertion and pending assumption holds under
// the assignment. Assumptions are dropped afterwards.
func (in *Interpreter) Solve() (bool, error) {
	res := dsmt.True
	for _, v := range in.assertions {
		res = res.And(v.b)
	}
	for _, v := range in.assumptions {
		res = res.And(v.b)
	}
	in.assumptions = nil

	switch res {
	case dsmt.True:
		return true, nil
	case dsmt.False:
		return false, nil
	}
	return false, ErrUndetermined
}

// ReadValue returns the value of a term. Values do not depend on Solve.
func (in *Interpreter) ReadValue(h dsmt.Handle) dsmt.Result {
	v, ok := h.(*value)
	if !ok {
		return dsmt.UnknownResult()
	}
	switch v.sort {
	case sortBool:
		return dsmt.ScalarResult(v.b)
	case sortBV:
		if v.bv == nil {
			return dsmt.UnknownBits(v.width)
		}
		return dsmt.ConstResult(v.bv)
	}
	return dsmt.UnknownResult()
}
