package dsmt_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/borzacchiello/dsmt"
)

type fakeHandle int

type call struct {
	Kind    dsmt.Kind
	Payload dsmt.Payload
	Args    []dsmt.Handle
}

// recorder is a backend that remembers every call and answers reads from a
// fixed table.
type recorder struct {
	calls       []call
	asserted    []dsmt.Handle
	assumed     []dsmt.Handle
	values      map[dsmt.Handle]dsmt.Result
	sat         bool
	failOn      dsmt.Kind
	err         error
	solveCalled int
}

func newRecorder() *recorder {
	return &recorder{values: make(map[dsmt.Handle]dsmt.Result), sat: true}
}

func (r *recorder) Create(kind dsmt.Kind, p dsmt.Payload, args ...dsmt.Handle) (dsmt.Handle, error) {
	if kind == r.failOn {
		return nil, r.err
	}
	r.calls = append(r.calls, call{Kind: kind, Payload: p, Args: append([]dsmt.Handle(nil), args...)})
	return fakeHandle(len(r.calls)), nil
}

func (r *recorder) Assertion(h dsmt.Handle) error {
	r.asserted = append(r.asserted, h)
	return nil
}

func (r *recorder) Assumption(h dsmt.Handle) error {
	r.assumed = append(r.assumed, h)
	return nil
}

func (r *recorder) Solve() (bool, error) {
	r.solveCalled++
	return r.sat, nil
}

func (r *recorder) ReadValue(h dsmt.Handle) dsmt.Result {
	if v, ok := r.values[h]; ok {
		return v
	}
	return dsmt.UnknownResult()
}

func (r *recorder) count(kind dsmt.Kind) int {
	n := 0
	for _, c := range r.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func quiet() dsmt.Option {
	return dsmt.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustEvaluate(t *testing.T, e *dsmt.Evaluator, n dsmt.Node) dsmt.Handle {
	t.Helper()
	h, err := e.Evaluate(n)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestEvaluate_VariableDeduplication(t *testing.T) {
	t.Run("Bool", func(t *testing.T) {
		r := newRecorder()
		e := dsmt.New(r, quiet())
		x := dsmt.BoolVar{ID: 1}

		mustEvaluate(t, e, dsmt.Apply(dsmt.TY_AND, x, dsmt.Apply(dsmt.TY_OR, x, dsmt.Apply(dsmt.TY_NOT, x))))
		if n := r.count(dsmt.TY_BOOL_VAR); n != 1 {
			t.Fatalf("variable created %d times", n)
		}

		h1 := mustEvaluate(t, e, x)
		h2 := mustEvaluate(t, e, x)
		if h1 != h2 {
			t.Fatalf("handles differ: %v != %v", h1, h2)
		}
		if n := r.count(dsmt.TY_BOOL_VAR); n != 1 {
			t.Fatalf("variable created %d times", n)
		}

		exp := dsmt.Stats{Calls: 4, VarLookups: 5, VarHits: 4, Vars: 1}
		if diff := cmp.Diff(exp, e.Stats()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("BitVector", func(t *testing.T) {
		r := newRecorder()
		e := dsmt.New(r, quiet())
		v := dsmt.BVVar{ID: 7, Width: 8}

		h := mustEvaluate(t, e, dsmt.Apply(dsmt.TY_BVADD, v, v))
		if n := r.count(dsmt.TY_BV_VAR); n != 1 {
			t.Fatalf("variable created %d times", n)
		}
		add := r.calls[len(r.calls)-1]
		if add.Args[0] != add.Args[1] {
			t.Fatalf("operands resolved to different handles: %v", add.Args)
		}
		if diff := cmp.Diff(dsmt.Symbol{ID: 7, Width: 8}, r.calls[0].Payload); diff != "" {
			t.Fatal(diff)
		}
		if h != fakeHandle(2) {
			t.Fatalf("unexpected handle %v", h)
		}
	})

	t.Run("Array", func(t *testing.T) {
		r := newRecorder()
		e := dsmt.New(r, quiet())
		a := dsmt.ArrayVar{ID: 3, IndexWidth: 4, ElemWidth: 8}

		mustEvaluate(t, e, dsmt.Apply(dsmt.TY_EQUAL, a, dsmt.Apply(dsmt.TY_STORE, a, dsmt.UintLit{Value: 1, Width: 4}, dsmt.UintLit{Value: 2, Width: 8})))
		if n := r.count(dsmt.TY_ARRAY_VAR); n != 1 {
			t.Fatalf("variable created %d times", n)
		}
		if diff := cmp.Diff(dsmt.Symbol{ID: 3, IndexWidth: 4, ElemWidth: 8}, r.calls[0].Payload); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Independent", func(t *testing.T) {
		r := newRecorder()
		e := dsmt.New(r, quiet())
		mustEvaluate(t, e, dsmt.Apply(dsmt.TY_AND, dsmt.BoolVar{ID: 1}, dsmt.BoolVar{ID: 2}))
		if n := r.count(dsmt.TY_BOOL_VAR); n != 2 {
			t.Fatalf("expected 2 variables, got %d", n)
		}

		// a second evaluator owns its own cache
		e2 := dsmt.New(r, quiet())
		mustEvaluate(t, e2, dsmt.BoolVar{ID: 1})
		if n := r.count(dsmt.TY_BOOL_VAR); n != 3 {
			t.Fatalf("expected 3 variables, got %d", n)
		}
	})
}

func TestEvaluate_Literals(t *testing.T) {
	for _, tt := range []struct {
		name string
		node dsmt.Node
		kind dsmt.Kind
		exp  dsmt.Payload
	}{
		{"Unsigned", dsmt.UintLit{Value: 5, Width: 4}, dsmt.TY_BVUINT, dsmt.Unsigned{Value: 5, Width: 4}},
		{"Signed", dsmt.SintLit{Value: -3, Width: 8}, dsmt.TY_BVSINT, dsmt.Signed{Value: -3, Width: 8}},
		{"Binary", dsmt.BinLit{Digits: "0101"}, dsmt.TY_BVBIN, dsmt.Digits{Base: 2, Text: "0101"}},
		{"Hex", dsmt.HexLit{Digits: "5"}, dsmt.TY_BVHEX, dsmt.Digits{Base: 16, Text: "5"}},
		{"HexVerbatim", dsmt.HexLit{Digits: "00fF"}, dsmt.TY_BVHEX, dsmt.Digits{Base: 16, Text: "00fF"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			e := dsmt.New(r, quiet())
			mustEvaluate(t, e, tt.node)

			exp := []call{{Kind: tt.kind, Payload: tt.exp}}
			if diff := cmp.Diff(exp, r.calls); diff != "" {
				t.Fatal(diff)
			}
		})
	}

	t.Run("NotCached", func(t *testing.T) {
		r := newRecorder()
		e := dsmt.New(r, quiet())
		lit := dsmt.UintLit{Value: 1, Width: 8}
		mustEvaluate(t, e, dsmt.Apply(dsmt.TY_BVADD, lit, lit))
		if n := r.count(dsmt.TY_BVUINT); n != 2 {
			t.Fatalf("literal forwarded %d times", n)
		}
	})
}

func TestEvaluate_Extract(t *testing.T) {
	r := newRecorder()
	e := dsmt.New(r, quiet())
	v := dsmt.BVVar{ID: 1, Width: 4}

	mustEvaluate(t, e, dsmt.Extract{Upper: 3, Lower: 1, Operand: v})
	exp := []call{
		{Kind: dsmt.TY_BV_VAR, Payload: dsmt.Symbol{ID: 1, Width: 4}},
		{Kind: dsmt.TY_EXTRACT, Payload: dsmt.Extraction{Upper: 3, Lower: 1}, Args: []dsmt.Handle{fakeHandle(1)}},
	}
	if diff := cmp.Diff(exp, r.calls); diff != "" {
		t.Fatal(diff)
	}

	// the operand shape does not matter
	r = newRecorder()
	e = dsmt.New(r, quiet())
	mustEvaluate(t, e, dsmt.Extract{Upper: 3, Lower: 1, Operand: dsmt.Apply(dsmt.TY_BVNOT, v)})
	last := r.calls[len(r.calls)-1]
	exp = []call{{Kind: dsmt.TY_EXTRACT, Payload: dsmt.Extraction{Upper: 3, Lower: 1}, Args: []dsmt.Handle{fakeHandle(2)}}}
	if diff := cmp.Diff(exp, []call{last}); diff != "" {
		t.Fatal(diff)
	}
}

func TestEvaluate_Extend(t *testing.T) {
	for _, tt := range []struct {
		name string
		node dsmt.Extend
		kind dsmt.Kind
	}{
		{"Zero", dsmt.ZeroExtend(4, dsmt.BVVar{ID: 1, Width: 4}), dsmt.TY_ZERO_EXTEND},
		{"Sign", dsmt.SignExtend(4, dsmt.BVVar{ID: 1, Width: 4}), dsmt.TY_SIGN_EXTEND},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			e := dsmt.New(r, quiet())
			mustEvaluate(t, e, tt.node)

			exp := call{Kind: tt.kind, Payload: dsmt.Extension{Width: 4}, Args: []dsmt.Handle{fakeHandle(1)}}
			if diff := cmp.Diff(exp, r.calls[1]); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestEvaluate_Passthrough(t *testing.T) {
	r := newRecorder()
	e := dsmt.New(r, quiet())

	h := mustEvaluate(t, e, dsmt.Term(fakeHandle(42)))
	if h != fakeHandle(42) {
		t.Fatalf("handle changed: %v", h)
	}
	if len(r.calls) != 0 {
		t.Fatalf("unexpected backend calls: %v", r.calls)
	}

	// spliced into a new formula
	mustEvaluate(t, e, dsmt.Apply(dsmt.TY_NOT, dsmt.Term(fakeHandle(42))))
	exp := []call{{Kind: dsmt.TY_NOT, Args: []dsmt.Handle{fakeHandle(42)}}}
	if diff := cmp.Diff(exp, r.calls); diff != "" {
		t.Fatal(diff)
	}
}

func TestEvaluate_OperandOrder(t *testing.T) {
	r := newRecorder()
	e := dsmt.New(r, quiet())

	c := dsmt.BoolVar{ID: 1}
	a := dsmt.BVVar{ID: 2, Width: 8}
	b := dsmt.BVVar{ID: 3, Width: 8}
	mustEvaluate(t, e, dsmt.Apply(dsmt.TY_ITE, c, a, b))

	kinds := make([]dsmt.Kind, len(r.calls))
	for i, c := range r.calls {
		kinds[i] = c.Kind
	}
	if diff := cmp.Diff([]dsmt.Kind{dsmt.TY_BOOL_VAR, dsmt.TY_BV_VAR, dsmt.TY_BV_VAR, dsmt.TY_ITE}, kinds); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]dsmt.Handle{fakeHandle(1), fakeHandle(2), fakeHandle(3)}, r.calls[3].Args); diff != "" {
		t.Fatal(diff)
	}
}

func TestEvaluate_Nullary(t *testing.T) {
	r := newRecorder()
	e := dsmt.New(r, quiet())
	mustEvaluate(t, e, dsmt.Apply(dsmt.TY_TRUE))
	if diff := cmp.Diff([]call{{Kind: dsmt.TY_TRUE}}, r.calls); diff != "" {
		t.Fatal(diff)
	}
}

func TestEvaluate_Reevaluation(t *testing.T) {
	r := newRecorder()
	e := dsmt.New(r, quiet())
	f := dsmt.Apply(dsmt.TY_NOT, dsmt.BoolVar{ID: 1})

	h1 := mustEvaluate(t, e, f)
	h2 := mustEvaluate(t, e, f)
	if h1 == h2 {
		t.Fatal("operator nodes must be forwarded on every evaluation")
	}
	if n := r.count(dsmt.TY_NOT); n != 2 {
		t.Fatalf("expected 2 not calls, got %d", n)
	}
}

func TestEvaluate_Deep(t *testing.T) {
	r := newRecorder()
	e := dsmt.New(r, quiet())

	const depth = 100000
	var n dsmt.Node = dsmt.BoolVar{ID: 1}
	for i := 0; i < depth; i++ {
		n = dsmt.Apply(dsmt.TY_NOT, n)
	}
	h := mustEvaluate(t, e, n)
	if h != fakeHandle(depth+1) {
		t.Fatalf("unexpected handle %v", h)
	}
	if len(r.calls) != depth+1 {
		t.Fatalf("unexpected number of calls %d", len(r.calls))
	}
}

func TestEvaluate_Malformed(t *testing.T) {
	for _, tt := range []struct {
		name string
		node dsmt.Node
	}{
		{"Nil", nil},
		{"MissingOperand", dsmt.Apply(dsmt.TY_AND, dsmt.BoolVar{ID: 1})},
		{"ExtraOperand", dsmt.Apply(dsmt.TY_NOT, dsmt.BoolVar{ID: 1}, dsmt.BoolVar{ID: 2})},
		{"NilOperand", dsmt.Apply(dsmt.TY_NOT, nil)},
		{"NilExtractOperand", dsmt.Extract{Upper: 1, Lower: 0}},
		{"NotAnOperator", dsmt.Apply(dsmt.TY_BV_VAR)},
		{"InvalidKind", dsmt.Apply(dsmt.Kind(1000))},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			e := dsmt.New(r, quiet())
			if _, err := e.Evaluate(tt.node); !errors.Is(err, dsmt.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestEvaluate_BackendError(t *testing.T) {
	errBoom := errors.New("boom")
	r := newRecorder()
	r.failOn = dsmt.TY_OR
	r.err = errBoom
	e := dsmt.New(r, quiet())

	_, err := e.Evaluate(dsmt.Apply(dsmt.TY_AND, dsmt.BoolVar{ID: 1}, dsmt.Apply(dsmt.TY_OR, dsmt.BoolVar{ID: 2}, dsmt.BoolVar{ID: 3})))
	if err != errBoom {
		t.Fatalf("backend error not passed through: %v", err)
	}
	if n := r.count(dsmt.TY_AND); n != 0 {
		t.Fatal("parent evaluated after a failed operand")
	}

	if err := e.Assertion(dsmt.Apply(dsmt.TY_OR, dsmt.BoolVar{ID: 1}, dsmt.BoolVar{ID: 1})); err != errBoom {
		t.Fatalf("backend error not passed through: %v", err)
	}
	if len(r.asserted) != 0 {
		t.Fatal("failed formula was asserted")
	}
}

func TestEvaluator_AssertionAssumption(t *testing.T) {
	r := newRecorder()
	e := dsmt.New(r, quiet())

	if err := e.Assertion(dsmt.BoolVar{ID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := e.Assumption(dsmt.Apply(dsmt.TY_NOT, dsmt.BoolVar{ID: 1})); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]dsmt.Handle{fakeHandle(1)}, r.asserted); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]dsmt.Handle{fakeHandle(2)}, r.assumed); diff != "" {
		t.Fatal(diff)
	}

	r.sat = false
	if sat, err := e.Solve(); err != nil || sat {
		t.Fatalf("expected unsat, got %v %v", sat, err)
	}
	if r.solveCalled != 1 {
		t.Fatal("solve not forwarded")
	}
}

func TestEvaluator_ReadValue(t *testing.T) {
	t.Run("UnknownBeforeEvaluation", func(t *testing.T) {
		e := dsmt.New(newRecorder(), quiet())

		if v := e.ReadValue(dsmt.BoolVar{ID: 1}); v.IsVector() || v.Tribool() != dsmt.Unknown {
			t.Fatalf("expected scalar unknown, got %s", v)
		}
		if v := e.ReadValue(dsmt.ArrayVar{ID: 2, IndexWidth: 4, ElemWidth: 8}); v.Tribool() != dsmt.Unknown {
			t.Fatalf("expected scalar unknown, got %s", v)
		}

		v := e.ReadValue(dsmt.BVVar{ID: 3, Width: 8})
		exp := []dsmt.Tribool{
			dsmt.Unknown, dsmt.Unknown, dsmt.Unknown, dsmt.Unknown,
			dsmt.Unknown, dsmt.Unknown, dsmt.Unknown, dsmt.Unknown,
		}
		if diff := cmp.Diff(exp, v.Bits()); diff != "" {
			t.Fatal(diff)
		}
		if v.String() != "XXXXXXXX" {
			t.Fatalf("unexpected string %q", v.String())
		}
	})

	t.Run("Forwarded", func(t *testing.T) {
		r := newRecorder()
		e := dsmt.New(r, quiet())
		x := dsmt.BoolVar{ID: 1}
		v := dsmt.BVVar{ID: 2, Width: 4}
		if err := e.Assertion(dsmt.Apply(dsmt.TY_AND, x, dsmt.Apply(dsmt.TY_EQUAL, v, dsmt.UintLit{Value: 5, Width: 4}))); err != nil {
			t.Fatal(err)
		}
		r.values[fakeHandle(1)] = dsmt.ScalarResult(dsmt.True)
		r.values[fakeHandle(2)] = dsmt.ConstResult(dsmt.MakeBVConst(5, 4))

		if b, ok := e.ReadValue(x).Bool(); !ok || !b {
			t.Fatal("expected x to be true")
		}
		if n, ok := e.ReadValue(v).Uint64(); !ok || n != 5 {
			t.Fatalf("expected v to be 5, got %d", n)
		}
		if n, ok := e.ReadValue(dsmt.Term(fakeHandle(2))).Uint64(); !ok || n != 5 {
			t.Fatalf("expected handle 2 to be 5, got %d", n)
		}
		if n, ok := e.ReadHandle(fakeHandle(2)).Uint64(); !ok || n != 5 {
			t.Fatalf("expected handle 2 to be 5, got %d", n)
		}
	})

	t.Run("NotAVariable", func(t *testing.T) {
		r := newRecorder()
		e := dsmt.New(r, quiet())
		if v := e.ReadValue(dsmt.Apply(dsmt.TY_NOT, dsmt.BoolVar{ID: 1})); v.Tribool() != dsmt.Unknown {
			t.Fatalf("expected unknown, got %s", v)
		}
		if v := e.ReadValue(nil); v.Tribool() != dsmt.Unknown {
			t.Fatalf("expected unknown, got %s", v)
		}
		if len(r.calls) != 0 {
			t.Fatal("reading must not evaluate")
		}
	})
}
