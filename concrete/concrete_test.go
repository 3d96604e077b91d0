package concrete_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/borzacchiello/dsmt"
	"github.com/borzacchiello/dsmt/concrete"
)

func newEvaluator(a concrete.Assignment) *dsmt.Evaluator {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return dsmt.New(concrete.NewInterpreter(a), dsmt.WithLogger(log))
}

func u8(v uint64) dsmt.UintLit {
	return dsmt.UintLit{Value: v, Width: 8}
}

func s8(v int64) dsmt.SintLit {
	return dsmt.SintLit{Value: v, Width: 8}
}

func eval(t *testing.T, e *dsmt.Evaluator, n dsmt.Node) dsmt.Result {
	t.Helper()
	h, err := e.Evaluate(n)
	if err != nil {
		t.Fatal(err)
	}
	return e.ReadHandle(h)
}

func TestArithmetic(t *testing.T) {
	for _, tt := range []struct {
		name string
		n    dsmt.Node
		exp  string
	}{
		{"Add", dsmt.Apply(dsmt.TY_BVADD, u8(250), u8(10)), "00000100"},
		{"Sub", dsmt.Apply(dsmt.TY_BVSUB, u8(3), u8(5)), "11111110"},
		{"Neg", dsmt.Apply(dsmt.TY_BVNEG, u8(1)), "11111111"},
		{"UDivZero", dsmt.Apply(dsmt.TY_BVUDIV, u8(5), u8(0)), "11111111"},
		{"URemZero", dsmt.Apply(dsmt.TY_BVUREM, u8(5), u8(0)), "00000101"},
		{"SDiv", dsmt.Apply(dsmt.TY_BVSDIV, s8(-7), s8(2)), "11111101"},
		{"SRem", dsmt.Apply(dsmt.TY_BVSREM, s8(-7), s8(2)), "11111111"},
		{"SDivZeroNegative", dsmt.Apply(dsmt.TY_BVSDIV, s8(-7), s8(0)), "00000001"},
		{"AShrOverflow", dsmt.Apply(dsmt.TY_BVASHR, u8(0x80), u8(200)), "11111111"},
		{"Concat", dsmt.Apply(dsmt.TY_CONCAT, dsmt.BinLit{Digits: "10"}, dsmt.BinLit{Digits: "01"}), "1001"},
		{"Extract", dsmt.Extract{Upper: 5, Lower: 2, Operand: dsmt.BinLit{Digits: "00111100"}}, "1111"},
		{"SignExtend", dsmt.SignExtend(2, dsmt.BinLit{Digits: "10"}), "1110"},
		{"ZeroExtend", dsmt.ZeroExtend(2, dsmt.BinLit{Digits: "10"}), "0010"},
		{"Comp", dsmt.Apply(dsmt.TY_BVCOMP, u8(1), u8(1)), "1"},
		{"Nand", dsmt.Apply(dsmt.TY_BVNAND, u8(0xf0), u8(0x3c)), "11001111"},
		{"Bool", dsmt.Apply(dsmt.TY_BVSLT, s8(-1), s8(0)), "1"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator(concrete.Assignment{})
			if got := eval(t, e, tt.n).String(); got != tt.exp {
				t.Errorf("expected %s, got %s", tt.exp, got)
			}
		})
	}
}

func TestAssignment(t *testing.T) {
	v := dsmt.BVVar{ID: 1, Width: 8}
	f := dsmt.Apply(dsmt.TY_EQUAL, dsmt.Apply(dsmt.TY_BVADD, v, u8(3)), u8(10))

	for _, tt := range []struct {
		name   string
		assign concrete.Assignment
		sat    bool
		err    error
	}{
		{"Satisfied", concrete.Assignment{BVs: map[uint]*dsmt.BVConst{1: dsmt.MakeBVConst(7, 8)}}, true, nil},
		{"Violated", concrete.Assignment{BVs: map[uint]*dsmt.BVConst{1: dsmt.MakeBVConst(8, 8)}}, false, nil},
		{"Unassigned", concrete.Assignment{}, false, concrete.ErrUndetermined},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator(tt.assign)
			if err := e.Assertion(f); err != nil {
				t.Fatal(err)
			}
			sat, err := e.Solve()
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if sat != tt.sat {
				t.Errorf("expected sat=%v", tt.sat)
			}
		})
	}

	e := newEvaluator(concrete.Assignment{BVs: map[uint]*dsmt.BVConst{1: dsmt.MakeBVConst(1, 4)}})
	if _, err := e.Evaluate(v); err == nil {
		t.Error("expected a size mismatch")
	}
}

func TestThreeValued(t *testing.T) {
	x, y := dsmt.BoolVar{ID: 1}, dsmt.BoolVar{ID: 2}
	e := newEvaluator(concrete.Assignment{Bools: map[uint]bool{2: true}})

	for _, tt := range []struct {
		n   dsmt.Node
		exp dsmt.Tribool
	}{
		{dsmt.Apply(dsmt.TY_OR, x, y), dsmt.True},
		{dsmt.Apply(dsmt.TY_AND, x, y), dsmt.Unknown},
		{dsmt.Apply(dsmt.TY_AND, x, dsmt.Apply(dsmt.TY_NOT, y)), dsmt.False},
		{dsmt.Apply(dsmt.TY_IMPLIES, x, y), dsmt.True},
		{dsmt.Apply(dsmt.TY_XOR, x, y), dsmt.Unknown},
		{dsmt.Apply(dsmt.TY_ITE, x, y, y), dsmt.True},
	} {
		if got := eval(t, e, tt.n).Tribool(); got != tt.exp {
			t.Errorf("%s: expected %s, got %s", tt.n, tt.exp, got)
		}
	}

	if r := e.ReadValue(x); r.Tribool() != dsmt.Unknown {
		t.Errorf("unassigned variable read as %s", r)
	}
	if b, ok := e.ReadValue(y).Bool(); !b || !ok {
		t.Error("y should be true")
	}

	// unknown operands make the whole bit-vector unknown
	v := dsmt.BVVar{ID: 3, Width: 4}
	if got := eval(t, e, dsmt.Apply(dsmt.TY_BVAND, v, dsmt.BinLit{Digits: "0000"})).String(); got != "XXXX" {
		t.Errorf("unexpected %s", got)
	}
}

func TestAssumptions(t *testing.T) {
	x := dsmt.BoolVar{ID: 1}
	e := newEvaluator(concrete.Assignment{Bools: map[uint]bool{1: true}})
	if err := e.Assertion(x); err != nil {
		t.Fatal(err)
	}
	if err := e.Assumption(dsmt.Apply(dsmt.TY_NOT, x)); err != nil {
		t.Fatal(err)
	}
	if sat, err := e.Solve(); sat || err != nil {
		t.Fatalf("expected unsat, got %v %v", sat, err)
	}
	if sat, err := e.Solve(); !sat || err != nil {
		t.Fatalf("expected sat, got %v %v", sat, err)
	}
}

func TestArrays(t *testing.T) {
	a := dsmt.ArrayVar{ID: 1, IndexWidth: 1, ElemWidth: 8}
	b := dsmt.ArrayVar{ID: 2, IndexWidth: 1, ElemWidth: 8}
	zero := dsmt.UintLit{Value: 0, Width: 1}
	one := dsmt.UintLit{Value: 1, Width: 1}
	e := newEvaluator(concrete.Assignment{
		Arrays: map[uint]map[uint64]*dsmt.BVConst{
			1: {0: dsmt.MakeBVConst(7, 8)},
			2: {0: dsmt.MakeBVConst(7, 8), 1: dsmt.MakeBVConst(9, 8)},
		},
		Bools: map[uint]bool{},
	})

	got := []string{
		eval(t, e, dsmt.Apply(dsmt.TY_SELECT, a, zero)).String(),
		eval(t, e, dsmt.Apply(dsmt.TY_SELECT, a, one)).String(),
		eval(t, e, dsmt.Apply(dsmt.TY_SELECT, dsmt.Apply(dsmt.TY_STORE, a, one, u8(9)), one)).String(),
		eval(t, e, dsmt.Apply(dsmt.TY_SELECT, dsmt.Apply(dsmt.TY_STORE, a, dsmt.BVVar{ID: 3, Width: 1}, u8(9)), zero)).String(),
		eval(t, e, dsmt.Apply(dsmt.TY_EQUAL, a, b)).String(),
		eval(t, e, dsmt.Apply(dsmt.TY_EQUAL, dsmt.Apply(dsmt.TY_STORE, a, one, u8(9)), b)).String(),
		eval(t, e, dsmt.Apply(dsmt.TY_EQUAL, dsmt.Apply(dsmt.TY_STORE, a, zero, u8(8)), b)).String(),
	}
	exp := []string{"00000111", "XXXXXXXX", "00001001", "XXXXXXXX", "X", "1", "0"}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Error(diff)
	}
}

func TestArrayIndexRange(t *testing.T) {
	e := newEvaluator(concrete.Assignment{
		Arrays: map[uint]map[uint64]*dsmt.BVConst{
			1: {0: dsmt.MakeBVConst(1, 8), 5: dsmt.MakeBVConst(9, 8)},
			2: {0: dsmt.MakeBVConst(1, 8), 1: dsmt.MakeBVConst(2, 8)},
		},
	})
	a := dsmt.ArrayVar{ID: 1, IndexWidth: 1, ElemWidth: 8}
	b := dsmt.ArrayVar{ID: 2, IndexWidth: 1, ElemWidth: 8}

	if _, err := e.Evaluate(dsmt.Apply(dsmt.TY_EQUAL, a, b)); err == nil {
		t.Error("index 5 does not fit in one bit")
	}
	if _, err := e.Evaluate(b); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Evaluate(dsmt.ArrayVar{ID: 1, IndexWidth: 3, ElemWidth: 8}); err != nil {
		t.Errorf("index 5 fits in three bits: %v", err)
	}
}

func TestErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		n    dsmt.Node
	}{
		{"SortMismatch", dsmt.Apply(dsmt.TY_OR, dsmt.BoolVar{ID: 1}, u8(1))},
		{"WidthMismatch", dsmt.Apply(dsmt.TY_BVMUL, u8(1), dsmt.UintLit{Value: 1, Width: 4})},
		{"ExtractRange", dsmt.Extract{Upper: 3, Lower: 4, Operand: u8(1)}},
		{"IndexWidth", dsmt.Apply(dsmt.TY_SELECT, dsmt.ArrayVar{ID: 2, IndexWidth: 2, ElemWidth: 8}, u8(1))},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator(concrete.Assignment{})
			if _, err := e.Evaluate(tt.n); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
