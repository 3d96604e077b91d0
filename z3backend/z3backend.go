// Package z3backend feeds dsmt formulas to the Z3 SMT solver.
package z3backend

import (
	"fmt"
	"math/big"
	"time"

	"github.com/aclements/go-z3/z3"
	"github.com/borzacchiello/dsmt"
)

// Ensure solver implements interface.
var _ dsmt.Backend = (*Solver)(nil)

// Solver is a dsmt.Backend over a Z3 context. Handles are z3.Value terms.
type Solver struct {
	ctx    *z3.Context
	cfg    *z3.Config
	solver *z3.Solver

	assertions  []z3.Bool
	assumptions []z3.Bool
	model       *z3.Model

	nsyms int
	stats Stats
}

// Stats returns statistics for the solver.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}

// NewSolver returns a Solver with an empty constraint set.
func NewSolver() *Solver {
	cfg := z3.NewContextConfig()
	ctx := z3.NewContext(cfg)
	return &Solver{
		ctx:    ctx,
		cfg:    cfg,
		solver: z3.NewSolver(ctx),
	}
}

func (s *Solver) Stats() Stats {
	return s.stats
}

func (s *Solver) Create(kind dsmt.Kind, p dsmt.Payload, args ...dsmt.Handle) (dsmt.Handle, error) {
	switch kind {
	case dsmt.TY_BOOL_VAR, dsmt.TY_BV_VAR, dsmt.TY_ARRAY_VAR:
		return s.declare(kind, p.(dsmt.Symbol))
	case dsmt.TY_BVUINT, dsmt.TY_BVSINT, dsmt.TY_BVBIN, dsmt.TY_BVHEX:
		c, err := p.(dsmt.Literal).Bits()
		if err != nil {
			return nil, err
		}
		return s.fromConst(c), nil
	case dsmt.TY_EXTRACT:
		x := p.(dsmt.Extraction)
		bv, err := asBV(args[0])
		if err != nil {
			return nil, err
		}
		return bv.Extract(int(x.Upper), int(x.Lower)), nil
	case dsmt.TY_ZERO_EXTEND, dsmt.TY_SIGN_EXTEND:
		x := p.(dsmt.Extension)
		bv, err := asBV(args[0])
		if err != nil {
			return nil, err
		}
		if kind == dsmt.TY_SIGN_EXTEND {
			return bv.SignExtend(int(x.Width)), nil
		}
		return bv.ZeroExtend(int(x.Width)), nil
	case dsmt.TY_TRUE:
		return s.ctx.FromBool(true), nil
	case dsmt.TY_FALSE:
		return s.ctx.FromBool(false), nil
	case dsmt.TY_BIT0:
		return s.fromConst(dsmt.MakeBVConst(0, 1)), nil
	case dsmt.TY_BIT1:
		return s.fromConst(dsmt.MakeBVConst(1, 1)), nil
	case dsmt.TY_EQUAL, dsmt.TY_NEQUAL:
		eq, err := equal(args[0], args[1])
		if err != nil {
			return nil, err
		}
		if kind == dsmt.TY_NEQUAL {
			return eq.Not(), nil
		}
		return eq, nil
	case dsmt.TY_ITE:
		guard, err := asBool(args[0])
		if err != nil {
			return nil, err
		}
		vs, err := asValues(args[1:])
		if err != nil {
			return nil, err
		}
		return guard.IfThenElse(vs[0], vs[1]), nil
	case dsmt.TY_SELECT:
		arr, ok := args[0].(z3.Array)
		if !ok {
			return nil, fmt.Errorf("z3backend: select on %T", args[0])
		}
		idx, err := asValue(args[1])
		if err != nil {
			return nil, err
		}
		return arr.Select(idx), nil
	case dsmt.TY_STORE:
		arr, ok := args[0].(z3.Array)
		if !ok {
			return nil, fmt.Errorf("z3backend: store on %T", args[0])
		}
		vs, err := asValues(args[1:])
		if err != nil {
			return nil, err
		}
		return arr.Store(vs[0], vs[1]), nil
	case dsmt.TY_NOT, dsmt.TY_AND, dsmt.TY_NAND, dsmt.TY_OR, dsmt.TY_NOR,
		dsmt.TY_XOR, dsmt.TY_XNOR, dsmt.TY_IMPLIES:
		return s.logic(kind, args)
	case dsmt.TY_BVCOMP:
		bvs, err := asBVs(args)
		if err != nil {
			return nil, err
		}
		one := s.fromConst(dsmt.MakeBVConst(1, 1))
		zero := s.fromConst(dsmt.MakeBVConst(0, 1))
		return bvs[0].Eq(bvs[1]).IfThenElse(one, zero), nil
	}
	if kind.IsOperator() {
		return s.bitvector(kind, args)
	}
	return nil, fmt.Errorf("z3backend: %w: %s", dsmt.ErrUnsupported, kind)
}

func (s *Solver) declare(kind dsmt.Kind, sym dsmt.Symbol) (dsmt.Handle, error) {
	// Z3 constants with equal names are the same term, every declaration
	// must get a fresh one.
	s.nsyms += 1
	switch kind {
	case dsmt.TY_BOOL_VAR:
		return s.ctx.BoolConst(fmt.Sprintf("p%d_%d", sym.ID, s.nsyms)), nil
	case dsmt.TY_BV_VAR:
		if sym.Width == 0 {
			return nil, fmt.Errorf("z3backend: zero width variable %d", sym.ID)
		}
		return s.ctx.BVConst(fmt.Sprintf("v%d_%d", sym.ID, s.nsyms), int(sym.Width)), nil
	default:
		sort := s.ctx.ArraySort(s.ctx.BVSort(int(sym.IndexWidth)), s.ctx.BVSort(int(sym.ElemWidth)))
		return s.ctx.Const(fmt.Sprintf("a%d_%d", sym.ID, s.nsyms), sort), nil
	}
}

func (s *Solver) fromConst(c *dsmt.BVConst) z3.BV {
	return s.ctx.FromBigInt(c.BigInt(), s.ctx.BVSort(int(c.Size))).(z3.BV)
}

func (s *Solver) logic(kind dsmt.Kind, args []dsmt.Handle) (dsmt.Handle, error) {
	bs := make([]z3.Bool, len(args))
	for i, a := range args {
		b, err := asBool(a)
		if err != nil {
			return nil, err
		}
		bs[i] = b
	}

	switch kind {
	case dsmt.TY_NOT:
		return bs[0].Not(), nil
	case dsmt.TY_AND:
		return bs[0].And(bs[1]), nil
	case dsmt.TY_NAND:
		return bs[0].And(bs[1]).Not(), nil
	case dsmt.TY_OR:
		return bs[0].Or(bs[1]), nil
	case dsmt.TY_NOR:
		return bs[0].Or(bs[1]).Not(), nil
	case dsmt.TY_XOR:
		return bs[0].Xor(bs[1]), nil
	case dsmt.TY_XNOR:
		return bs[0].Xor(bs[1]).Not(), nil
	case dsmt.TY_IMPLIES:
		return bs[0].Implies(bs[1]), nil
	}
	panic("invalid logic kind")
}

func (s *Solver) bitvector(kind dsmt.Kind, args []dsmt.Handle) (dsmt.Handle, error) {
	bvs, err := asBVs(args)
	if err != nil {
		return nil, err
	}

	if len(bvs) == 1 {
		switch kind {
		case dsmt.TY_BVNOT:
			return bvs[0].Not(), nil
		case dsmt.TY_BVNEG:
			return bvs[0].Neg(), nil
		}
		return nil, fmt.Errorf("z3backend: %w: %s", dsmt.ErrUnsupported, kind)
	}

	lhs, rhs := bvs[0], bvs[1]
	switch kind {
	case dsmt.TY_BVAND:
		return lhs.And(rhs), nil
	case dsmt.TY_BVNAND:
		return lhs.And(rhs).Not(), nil
	case dsmt.TY_BVOR:
		return lhs.Or(rhs), nil
	case dsmt.TY_BVNOR:
		return lhs.Or(rhs).Not(), nil
	case dsmt.TY_BVXOR:
		return lhs.Xor(rhs), nil
	case dsmt.TY_BVXNOR:
		return lhs.Xor(rhs).Not(), nil
	case dsmt.TY_BVADD:
		return lhs.Add(rhs), nil
	case dsmt.TY_BVSUB:
		return lhs.Sub(rhs), nil
	case dsmt.TY_BVMUL:
		return lhs.Mul(rhs), nil
	case dsmt.TY_BVUDIV:
		return lhs.UDiv(rhs), nil
	case dsmt.TY_BVUREM:
		return lhs.URem(rhs), nil
	case dsmt.TY_BVSDIV:
		return lhs.SDiv(rhs), nil
	case dsmt.TY_BVSREM:
		return lhs.SRem(rhs), nil
	case dsmt.TY_BVSHL:
		return lhs.Lsh(rhs), nil
	case dsmt.TY_BVLSHR:
		return lhs.URsh(rhs), nil
	case dsmt.TY_BVASHR:
		return lhs.SRsh(rhs), nil
	case dsmt.TY_CONCAT:
		return lhs.Concat(rhs), nil
	case dsmt.TY_BVULT:
		return lhs.ULT(rhs), nil
	case dsmt.TY_BVULE:
		return lhs.ULE(rhs), nil
	case dsmt.TY_BVUGT:
		return lhs.UGT(rhs), nil
	case dsmt.TY_BVUGE:
		return lhs.UGE(rhs), nil
	case dsmt.TY_BVSLT:
		return lhs.SLT(rhs), nil
	case dsmt.TY_BVSLE:
		return lhs.SLE(rhs), nil
	case dsmt.TY_BVSGT:
		return lhs.SGT(rhs), nil
	case dsmt.TY_BVSGE:
		return lhs.SGE(rhs), nil
	}
	return nil, fmt.Errorf("z3backend: %w: %s", dsmt.ErrUnsupported, kind)
}

func equal(a, b dsmt.Handle) (z3.Bool, error) {
	switch a := a.(type) {
	case z3.Bool:
		b, err := asBool(b)
		if err != nil {
			return z3.Bool{}, err
		}
		return a.Iff(b), nil
	case z3.BV:
		b, err := asBV(b)
		if err != nil {
			return z3.Bool{}, err
		}
		return a.Eq(b), nil
	case z3.Array:
		b, ok := b.(z3.Array)
		if !ok {
			return z3.Bool{}, fmt.Errorf("z3backend: comparing array with %T", b)
		}
		return a.Eq(b), nil
	}
	return z3.Bool{}, fmt.Errorf("z3backend: cannot compare %T", a)
}

func asValue(h dsmt.Handle) (z3.Value, error) {
	v, ok := h.(z3.Value)
	if !ok {
		return nil, fmt.Errorf("z3backend: foreign handle %T", h)
	}
	return v, nil
}

func asValues(args []dsmt.Handle) ([]z3.Value, error) {
	res := make([]z3.Value, len(args))
	for i, a := range args {
		v, err := asValue(a)
		if err != nil {
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

func asBool(h dsmt.Handle) (z3.Bool, error) {
	b, ok := h.(z3.Bool)
	if !ok {
		return z3.Bool{}, fmt.Errorf("z3backend: expected a boolean term, got %T", h)
	}
	return b, nil
}

func asBV(h dsmt.Handle) (z3.BV, error) {
	bv, ok := h.(z3.BV)
	if !ok {
		return z3.BV{}, fmt.Errorf("z3backend: expected a bit-vector term, got %T", h)
	}
	return bv, nil
}

func asBVs(args []dsmt.Handle) ([]z3.BV, error) {
	res := make([]z3.BV, len(args))
	for i, a := range args {
		bv, err := asBV(a)
		if err != nil {
			return nil, err
		}
		res[i] = bv
	}
	return res, nil
}

func (s *Solver) Assertion(h dsmt.Handle) error {
	b, err := asBool(h)
	if err != nil {
		return err
	}
	s.model = nil
	s.assertions = append(s.assertions, b)
	return nil
}

func (s *Solver) Assumption(h dsmt.Handle) error {
	b, err := asBool(h)
	if err != nil {
		return err
	}
	s.model = nil
	s.assumptions = append(s.assumptions, b)
	return nil
}

// Solve checks the assertions together with the pending assumptions, which
// are dropped afterwards.
func (s *Solver) Solve() (bool, error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
	}()

	s.model = nil
	s.solver.Reset()
	for _, a := range s.assertions {
		s.solver.Assert(a)
	}
	for _, a := range s.assumptions {
		s.solver.Assert(a)
	}
	s.assumptions = nil

	r, err := s.solver.Check()
	if err != nil {
		return false, err
	}
	if r {
		s.model = s.solver.Model()
	}
	return r, nil
}

func (s *Solver) ReadValue(h dsmt.Handle) dsmt.Result {
	switch v := h.(type) {
	case z3.Bool:
		if s.model == nil {
			return dsmt.UnknownResult()
		}
		val, isLiteral := s.model.Eval(v, false).(z3.Bool).AsBool()
		if !isLiteral {
			return dsmt.UnknownResult()
		}
		return dsmt.ScalarResult(dsmt.TriboolOf(val))
	case z3.BV:
		width := uint(v.Sort().BVSize())
		if s.model == nil {
			return dsmt.UnknownBits(width)
		}
		val, isLiteral := s.model.Eval(v, false).(z3.BV).AsBigUnsigned()
		if !isLiteral {
			return dsmt.UnknownBits(width)
		}
		return dsmt.ConstResult(dsmt.MakeBVConstFromBigint(new(big.Int).Set(val), width))
	}
	return dsmt.UnknownResult()
}
