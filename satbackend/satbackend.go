// Package satbackend is a pure Go dsmt.Backend. Formulas are bit-blasted into
// an and-inverter circuit and solved with the gini SAT solver.
//
// Arrays are expanded into one bit-vector per index, so only arrays with a
// small index width are accepted.
package satbackend

import (
	"errors"
	"fmt"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/borzacchiello/dsmt"
)

// Ensure solver implements interface.
var _ dsmt.Backend = (*Solver)(nil)

// ErrUndetermined is returned by Solve when gini gives up.
var ErrUndetermined = errors.New("satbackend: undetermined")

// DefaultMaxArrayIndexWidth bounds arrays to 1024 elements.
const DefaultMaxArrayIndexWidth = 10

// MaxArrayIndexWidth is the largest index width WithMaxArrayIndexWidth
// accepts. Larger values are clamped.
const MaxArrayIndexWidth = 24

type sort int

const (
	sortBool sort = iota
	sortBV
	sortArray
)

func (s sort) String() string {
	switch s {
	case sortBool:
		return "bool"
	case sortBV:
		return "bitvector"
	}
	return "array"
}

// term is the handle type of this backend.
type term struct {
	sort  sort
	bits  []z.Lit   // sortBool: one literal, sortBV: LSB first
	elems [][]z.Lit // sortArray: one bit-vector per index
	index uint      // sortArray: index width
}

func (t *term) String() string {
	if t.sort == sortArray {
		return fmt.Sprintf("<array %d:%d>", t.index, len(t.elems[0]))
	}
	return fmt.Sprintf("<%s %d>", t.sort, len(t.bits))
}

// Option configures a Solver.
type Option func(*Solver)

// WithMaxArrayIndexWidth changes the largest accepted array index width, up
// to MaxArrayIndexWidth.
func WithMaxArrayIndexWidth(n uint) Option {
	return func(s *Solver) {
		s.maxIndexWidth = min(n, MaxArrayIndexWidth)
	}
}

// Solver is a dsmt.Backend. The zero value is not usable, use NewSolver.
type Solver struct {
	b blaster

	assertions  []z.Lit
	assumptions []z.Lit
	model       *gini.Gini
	cone        []int8 // circuit variables sent to the model, indexed by z.Var

	maxIndexWidth uint
}

// NewSolver returns a Solver with no constraints.
func NewSolver(opts ...Option) *Solver {
	s := &Solver{
		b:             blaster{c: logic.NewC()},
		maxIndexWidth: DefaultMaxArrayIndexWidth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Solver) boolTerm(m z.Lit) *term {
	return &term{sort: sortBool, bits: []z.Lit{m}}
}

func (s *Solver) bvTerm(bits []z.Lit) *term {
	return &term{sort: sortBV, bits: bits}
}

func asTerm(h dsmt.Handle, want sort) (*term, error) {
	t, ok := h.(*term)
	if !ok {
		return nil, fmt.Errorf("satbackend: foreign handle %T", h)
	}
	if t.sort != want {
		return nil, fmt.Errorf("satbackend: expected %s, got %s", want, t.sort)
	}
	return t, nil
}

func asTerms(args []dsmt.Handle, want sort) ([]*term, error) {
	res := make([]*term, len(args))
	for i, a := range args {
		t, err := asTerm(a, want)
		if err != nil {
			return nil, err
		}
		res[i] = t
	}
	return res, nil
}

func sameWidth(ts []*term) error {
	for _, t := range ts[1:] {
		if len(t.bits) != len(ts[0].bits) {
			return fmt.Errorf("satbackend: different sizes %d and %d", len(ts[0].bits), len(t.bits))
		}
	}
	return nil
}

func (s *Solver) Create(kind dsmt.Kind, p dsmt.Payload, args ...dsmt.Handle) (dsmt.Handle, error) {
	b := &s.b
	switch kind {
	case dsmt.TY_BOOL_VAR:
		return s.boolTerm(b.c.Lit()), nil
	case dsmt.TY_BV_VAR:
		sym := p.(dsmt.Symbol)
		if sym.Width == 0 {
			return nil, fmt.Errorf("satbackend: zero width variable %d", sym.ID)
		}
		return s.bvTerm(b.fresh(sym.Width)), nil
	case dsmt.TY_ARRAY_VAR:
		return s.array(p.(dsmt.Symbol))
	case dsmt.TY_BVUINT, dsmt.TY_BVSINT, dsmt.TY_BVBIN, dsmt.TY_BVHEX:
		c, err := p.(dsmt.Literal).Bits()
		if err != nil {
			return nil, err
		}
		return s.bvTerm(b.constant(c)), nil
	case dsmt.TY_EXTRACT:
		x := p.(dsmt.Extraction)
		t, err := asTerm(args[0], sortBV)
		if err != nil {
			return nil, err
		}
		if x.Lower > x.Upper || x.Upper >= uint(len(t.bits)) {
			return nil, fmt.Errorf("satbackend: extract %d:%d out of %d bits", x.Upper, x.Lower, len(t.bits))
		}
		return s.bvTerm(append([]z.Lit(nil), t.bits[x.Lower:x.Upper+1]...)), nil
	case dsmt.TY_ZERO_EXTEND, dsmt.TY_SIGN_EXTEND:
		x := p.(dsmt.Extension)
		t, err := asTerm(args[0], sortBV)
		if err != nil {
			return nil, err
		}
		pad := b.f()
		if kind == dsmt.TY_SIGN_EXTEND {
			pad = t.bits[len(t.bits)-1]
		}
		bits := append(append([]z.Lit(nil), t.bits...), b.fill(x.Width, pad)...)
		return s.bvTerm(bits), nil
	case dsmt.TY_TRUE:
		return s.boolTerm(b.t()), nil
	case dsmt.TY_FALSE:
		return s.boolTerm(b.f()), nil
	case dsmt.TY_BIT0:
		return s.bvTerm([]z.Lit{b.f()}), nil
	case dsmt.TY_BIT1:
		return s.bvTerm([]z.Lit{b.t()}), nil
	case dsmt.TY_EQUAL, dsmt.TY_NEQUAL:
		eq, err := s.equal(args[0], args[1])
		if err != nil {
			return nil, err
		}
		if kind == dsmt.TY_NEQUAL {
			eq = eq.Not()
		}
		return s.boolTerm(eq), nil
	case dsmt.TY_ITE:
		return s.ite(args[0], args[1], args[2])
	case dsmt.TY_SELECT:
		return s.sel(args[0], args[1])
	case dsmt.TY_STORE:
		return s.store(args[0], args[1], args[2])
	case dsmt.TY_NOT, dsmt.TY_AND, dsmt.TY_NAND, dsmt.TY_OR, dsmt.TY_NOR,
		dsmt.TY_XOR, dsmt.TY_XNOR, dsmt.TY_IMPLIES:
		return s.logic(kind, args)
	}
	if kind.IsOperator() {
		return s.bitvector(kind, args)
	}
	return nil, fmt.Errorf("satbackend: %w: %s", dsmt.ErrUnsupported, kind)
}

func (s *Solver) logic(kind dsmt.Kind, args []dsmt.Handle) (dsmt.Handle, error) {
	ts, err := asTerms(args, sortBool)
	if err != nil {
		return nil, err
	}
	b := &s.b
	if kind == dsmt.TY_NOT {
		return s.boolTerm(ts[0].bits[0].Not()), nil
	}

	x, y := ts[0].bits[0], ts[1].bits[0]
	var m z.Lit
	switch kind {
	case dsmt.TY_AND:
		m = b.and(x, y)
	case dsmt.TY_NAND:
		m = b.and(x, y).Not()
	case dsmt.TY_OR:
		m = b.or(x, y)
	case dsmt.TY_NOR:
		m = b.or(x, y).Not()
	case dsmt.TY_XOR:
		m = b.xor(x, y)
	case dsmt.TY_XNOR:
		m = b.xnor(x, y)
	case dsmt.TY_IMPLIES:
		m = b.c.Implies(x, y)
	default:
		panic("invalid logic kind")
	}
	return s.boolTerm(m), nil
}

func (s *Solver) bitvector(kind dsmt.Kind, args []dsmt.Handle) (dsmt.Handle, error) {
	ts, err := asTerms(args, sortBV)
	if err != nil {
		return nil, err
	}
	b := &s.b

	if len(ts) == 1 {
		switch kind {
		case dsmt.TY_BVNOT:
			return s.bvTerm(b.not(ts[0].bits)), nil
		case dsmt.TY_BVNEG:
			return s.bvTerm(b.neg(ts[0].bits)), nil
		}
		return nil, fmt.Errorf("satbackend: %w: %s", dsmt.ErrUnsupported, kind)
	}

	x, y := ts[0].bits, ts[1].bits
	if kind == dsmt.TY_CONCAT {
		return s.bvTerm(append(append([]z.Lit(nil), y...), x...)), nil
	}
	if err := sameWidth(ts); err != nil {
		return nil, err
	}

	switch kind {
	case dsmt.TY_BVAND:
		return s.bvTerm(b.bitwise(x, y, b.and)), nil
	case dsmt.TY_BVNAND:
		return s.bvTerm(b.not(b.bitwise(x, y, b.and))), nil
	case dsmt.TY_BVOR:
		return s.bvTerm(b.bitwise(x, y, b.or)), nil
	case dsmt.TY_BVNOR:
		return s.bvTerm(b.not(b.bitwise(x, y, b.or))), nil
	case dsmt.TY_BVXOR:
		return s.bvTerm(b.bitwise(x, y, b.xor)), nil
	case dsmt.TY_BVXNOR:
		return s.bvTerm(b.bitwise(x, y, b.xnor)), nil
	case dsmt.TY_BVCOMP:
		return s.bvTerm([]z.Lit{b.eq(x, y)}), nil
	case dsmt.TY_BVADD:
		return s.bvTerm(b.add(x, y)), nil
	case dsmt.TY_BVSUB:
		return s.bvTerm(b.sub(x, y)), nil
	case dsmt.TY_BVMUL:
		return s.bvTerm(b.mul(x, y)), nil
	case dsmt.TY_BVUDIV:
		q, _ := b.udivrem(x, y)
		return s.bvTerm(q), nil
	case dsmt.TY_BVUREM:
		_, r := b.udivrem(x, y)
		return s.bvTerm(r), nil
	case dsmt.TY_BVSDIV:
		q, _ := b.sdivrem(x, y)
		return s.bvTerm(q), nil
	case dsmt.TY_BVSREM:
		_, r := b.sdivrem(x, y)
		return s.bvTerm(r), nil
	case dsmt.TY_BVSHL:
		return s.bvTerm(b.shift(x, y, true, b.f())), nil
	case dsmt.TY_BVLSHR:
		return s.bvTerm(b.shift(x, y, false, b.f())), nil
	case dsmt.TY_BVASHR:
		return s.bvTerm(b.shift(x, y, false, x[len(x)-1])), nil
	case dsmt.TY_BVULT:
		return s.boolTerm(b.ult(x, y)), nil
	case dsmt.TY_BVULE:
		return s.boolTerm(b.ult(y, x).Not()), nil
	case dsmt.TY_BVUGT:
		return s.boolTerm(b.ult(y, x)), nil
	case dsmt.TY_BVUGE:
		return s.boolTerm(b.ult(x, y).Not()), nil
	case dsmt.TY_BVSLT:
		return s.boolTerm(b.slt(x, y)), nil
	case dsmt.TY_BVSLE:
		return s.boolTerm(b.slt(y, x).Not()), nil
	case dsmt.TY_BVSGT:
		return s.boolTerm(b.slt(y, x)), nil
	case dsmt.TY_BVSGE:
		return s.boolTerm(b.slt(x, y).Not()), nil
	}
	return nil, fmt.Errorf("satbackend: %w: %s", dsmt.ErrUnsupported, kind)
}

func (s *Solver) equal(x, y dsmt.Handle) (z.Lit, error) {
	tx, ok := x.(*term)
	if !ok {
		return z.LitNull, fmt.Errorf("satbackend: foreign handle %T", x)
	}
	ty, err := asTerm(y, tx.sort)
	if err != nil {
		return z.LitNull, err
	}
	switch tx.sort {
	case sortArray:
		if tx.index != ty.index || len(tx.elems[0]) != len(ty.elems[0]) {
			return z.LitNull, fmt.Errorf("satbackend: comparing arrays of different sorts")
		}
		ms := make([]z.Lit, len(tx.elems))
		for i := range tx.elems {
			ms[i] = s.b.eq(tx.elems[i], ty.elems[i])
		}
		return s.b.ands(ms), nil
	default:
		if err := sameWidth([]*term{tx, ty}); err != nil {
			return z.LitNull, err
		}
		return s.b.eq(tx.bits, ty.bits), nil
	}
}

func (s *Solver) ite(c, x, y dsmt.Handle) (dsmt.Handle, error) {
	guard, err := asTerm(c, sortBool)
	if err != nil {
		return nil, err
	}
	tx, ok := x.(*term)
	if !ok {
		return nil, fmt.Errorf("satbackend: foreign handle %T", x)
	}
	ty, err := asTerm(y, tx.sort)
	if err != nil {
		return nil, err
	}

	i := guard.bits[0]
	if tx.sort == sortArray {
		if tx.index != ty.index {
			return nil, fmt.Errorf("satbackend: ite over arrays of different sorts")
		}
		elems := make([][]z.Lit, len(tx.elems))
		for j := range elems {
			elems[j] = s.b.iteBits(i, tx.elems[j], ty.elems[j])
		}
		return &term{sort: sortArray, elems: elems, index: tx.index}, nil
	}
	if err := sameWidth([]*term{tx, ty}); err != nil {
		return nil, err
	}
	return &term{sort: tx.sort, bits: s.b.iteBits(i, tx.bits, ty.bits)}, nil
}

func (s *Solver) array(sym dsmt.Symbol) (dsmt.Handle, error) {
	if sym.IndexWidth == 0 || sym.ElemWidth == 0 {
		return nil, fmt.Errorf("satbackend: zero width array %d", sym.ID)
	}
	if sym.IndexWidth > s.maxIndexWidth {
		return nil, fmt.Errorf("satbackend: %w: array index width %d exceeds %d", dsmt.ErrUnsupported, sym.IndexWidth, s.maxIndexWidth)
	}
	elems := make([][]z.Lit, 1<<sym.IndexWidth)
	for i := range elems {
		elems[i] = s.b.fresh(sym.ElemWidth)
	}
	return &term{sort: sortArray, elems: elems, index: sym.IndexWidth}, nil
}

func (s *Solver) arrayIndex(a, i dsmt.Handle) (*term, *term, error) {
	arr, err := asTerm(a, sortArray)
	if err != nil {
		return nil, nil, err
	}
	idx, err := asTerm(i, sortBV)
	if err != nil {
		return nil, nil, err
	}
	if uint(len(idx.bits)) != arr.index {
		return nil, nil, fmt.Errorf("satbackend: index of %d bits into array indexed by %d bits", len(idx.bits), arr.index)
	}
	return arr, idx, nil
}

func (s *Solver) sel(a, i dsmt.Handle) (dsmt.Handle, error) {
	arr, idx, err := s.arrayIndex(a, i)
	if err != nil {
		return nil, err
	}
	res := arr.elems[0]
	for j := 1; j < len(arr.elems); j++ {
		res = s.b.iteBits(s.b.equalsConst(idx.bits, uint64(j)), arr.elems[j], res)
	}
	return s.bvTerm(res), nil
}

func (s *Solver) store(a, i, v dsmt.Handle) (dsmt.Handle, error) {
	arr, idx, err := s.arrayIndex(a, i)
	if err != nil {
		return nil, err
	}
	val, err := asTerm(v, sortBV)
	if err != nil {
		return nil, err
	}
	if len(val.bits) != len(arr.elems[0]) {
		return nil, fmt.Errorf("satbackend: storing %d bits into elements of %d bits", len(val.bits), len(arr.elems[0]))
	}
	elems := make([][]z.Lit, len(arr.elems))
	for j := range elems {
		elems[j] = s.b.iteBits(s.b.equalsConst(idx.bits, uint64(j)), val.bits, arr.elems[j])
	}
	return &term{sort: sortArray, elems: elems, index: arr.index}, nil
}

func (s *Solver) Assertion(h dsmt.Handle) error {
	t, err := asTerm(h, sortBool)
	if err != nil {
		return err
	}
	s.model = nil
	s.assertions = append(s.assertions, t.bits[0])
	return nil
}

func (s *Solver) Assumption(h dsmt.Handle) error {
	t, err := asTerm(h, sortBool)
	if err != nil {
		return err
	}
	s.model = nil
	s.assumptions = append(s.assumptions, t.bits[0])
	return nil
}

// Solve runs a fresh gini instance over the part of the circuit reachable
// from the assertions and the pending assumptions. Assumptions are dropped
// afterwards.
func (s *Solver) Solve() (bool, error) {
	s.model = nil
	s.cone = nil

	roots := make([]z.Lit, 0, len(s.assertions)+len(s.assumptions))
	roots = append(roots, s.assertions...)
	roots = append(roots, s.assumptions...)
	s.assumptions = nil

	g := gini.New()
	cone, _ := s.b.c.CnfSince(g, nil, roots...)
	for _, m := range roots {
		g.Add(m)
		g.Add(z.LitNull)
	}

	switch g.Solve() {
	case 1:
		s.model = g
		s.cone = cone
		return true, nil
	case -1:
		return false, nil
	}
	return false, ErrUndetermined
}

// value reads m from the model. Gates outside the cone are evaluated from
// their inputs; inputs outside the cone are unconstrained.
func (s *Solver) value(m z.Lit, memo map[z.Var]dsmt.Tribool) dsmt.Tribool {
	v := m.Var()
	r, ok := memo[v]
	if !ok {
		if int(v) < len(s.cone) && s.cone[v] == 1 {
			r = dsmt.TriboolOf(s.model.Value(v.Pos()))
		} else if a, b := s.b.c.Ins(v.Pos()); a != z.LitNull {
			r = s.value(a, memo).And(s.value(b, memo))
		} else {
			r = dsmt.Unknown
		}
		memo[v] = r
	}
	if !m.IsPos() {
		return r.Not()
	}
	return r
}

func (s *Solver) ReadValue(h dsmt.Handle) dsmt.Result {
	t, ok := h.(*term)
	if !ok || t.sort == sortArray {
		return dsmt.UnknownResult()
	}
	if t.sort == sortBool {
		if s.model == nil {
			return dsmt.UnknownResult()
		}
		return dsmt.ScalarResult(s.value(t.bits[0], map[z.Var]dsmt.Tribool{}))
	}

	if s.model == nil {
		return dsmt.UnknownBits(uint(len(t.bits)))
	}
	memo := make(map[z.Var]dsmt.Tribool)
	bits := make([]dsmt.Tribool, len(t.bits))
	for i, m := range t.bits {
		bits[i] = s.value(m, memo)
	}
	return dsmt.BitsResult(bits)
}
