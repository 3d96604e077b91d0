package dsmt

import (
	"fmt"
	"log/slog"
)

// Stats counts the work an Evaluator delegated to its backend.
type Stats struct {
	Calls      uint // Backend.Create calls, variables included
	VarLookups uint
	VarHits    uint
	Vars       uint // variables materialized in the backend
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for debug output. The default is
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.log = l
	}
}

// Evaluator replays formula DAGs into a Backend. Every variable id is created
// in the backend at most once for the lifetime of the Evaluator; all other
// nodes are forwarded each time they are evaluated.
//
// An Evaluator must not be used from more than one goroutine at a time.
type Evaluator struct {
	backend Backend
	vars    *varCache
	log     *slog.Logger
	stats   Stats
}

// New returns an Evaluator feeding b.
func New(b Backend, opts ...Option) *Evaluator {
	e := &Evaluator{
		backend: b,
		vars:    newVarCache(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backend returns the backend e feeds.
func (e *Evaluator) Backend() Backend {
	return e.backend
}

// Stats returns the counters accumulated so far.
func (e *Evaluator) Stats() Stats {
	return e.stats
}

type frame struct {
	n    Node
	ops  []Node
	args []Handle
}

// Evaluate registers n and its sub-formulas in the backend and returns the
// handle of n. Operands are evaluated before the node using them, left to
// right. The walk uses an explicit stack, so the depth of n is only bounded by
// memory.
//
// Errors returned by the backend are passed through unchanged.
func (e *Evaluator) Evaluate(n Node) (Handle, error) {
	stack := make([]frame, 0, 16)

	push := func(n Node) error {
		if n == nil {
			return fmt.Errorf("%w: nil node", ErrMalformed)
		}
		ops := operands(n)
		if o, ok := n.(Op); ok {
			if !o.Tag.IsOperator() {
				return fmt.Errorf("%w: %s is not an operator", ErrMalformed, o.Tag)
			}
			if len(ops) != o.Tag.Arity() {
				return fmt.Errorf("%w: %s takes %d operands, got %d", ErrMalformed, o.Tag, o.Tag.Arity(), len(ops))
			}
		}
		stack = append(stack, frame{n: n, ops: ops, args: make([]Handle, 0, len(ops))})
		return nil
	}

	if err := push(n); err != nil {
		return nil, err
	}
	for {
		top := &stack[len(stack)-1]
		if len(top.args) < len(top.ops) {
			if err := push(top.ops[len(top.args)]); err != nil {
				return nil, err
			}
			continue
		}

		h, err := e.apply(top.n, top.args)
		if err != nil {
			return nil, err
		}
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return h, nil
		}
		parent := &stack[len(stack)-1]
		parent.args = append(parent.args, h)
	}
}

// apply forwards a single node whose operands are already evaluated.
func (e *Evaluator) apply(n Node, args []Handle) (Handle, error) {
	switch k := n.Kind(); k {
	case TY_BOOL_VAR, TY_BV_VAR, TY_ARRAY_VAR:
		return e.variable(n)
	case TY_BVUINT, TY_BVSINT, TY_BVBIN, TY_BVHEX:
		return e.create(k, normalize(n))
	case TY_EXTRACT:
		x := n.(Extract)
		return e.create(k, Extraction{Upper: x.Upper, Lower: x.Lower}, args...)
	case TY_ZERO_EXTEND, TY_SIGN_EXTEND:
		x := n.(Extend)
		return e.create(k, Extension{Width: x.Width}, args...)
	case TY_RESOLVED:
		return n.(Resolved).Handle, nil
	default:
		return e.create(k, nil, args...)
	}
}

func (e *Evaluator) variable(n Node) (Handle, error) {
	id := varID(n)
	e.stats.VarLookups += 1
	if h, ok := e.vars.lookup(id); ok {
		e.stats.VarHits += 1
		return h, nil
	}

	h, err := e.create(n.Kind(), symbol(n))
	if err != nil {
		return nil, err
	}
	e.vars.insert(id, h)
	e.stats.Vars += 1
	e.log.Debug("dsmt: variable materialized", "kind", n.Kind().String(), "id", id)
	return h, nil
}

func (e *Evaluator) create(k Kind, p Payload, args ...Handle) (Handle, error) {
	e.stats.Calls += 1
	return e.backend.Create(k, p, args...)
}

// Assertion evaluates n and adds it permanently to the backend constraints.
func (e *Evaluator) Assertion(n Node) error {
	h, err := e.Evaluate(n)
	if err != nil {
		return err
	}
	return e.backend.Assertion(h)
}

// Assumption evaluates n and adds it to the constraints of the next Solve
// only.
func (e *Evaluator) Assumption(n Node) error {
	h, err := e.Evaluate(n)
	if err != nil {
		return err
	}
	return e.backend.Assumption(h)
}

// Solve reports whether the asserted and assumed formulas are satisfiable.
func (e *Evaluator) Solve() (bool, error) {
	sat, err := e.backend.Solve()
	e.log.Debug("dsmt: solve", "sat", sat, "err", err, "vars", e.vars.len())
	return sat, err
}

// ReadValue returns the assignment of a variable after a successful Solve.
//
// A variable that was never evaluated is not known to the backend; the
// result is then unknown: a scalar for booleans and arrays, and Width unknown
// bits for bit-vectors. Resolved nodes are read from the backend directly.
// Any other node yields a scalar unknown, since evaluating it would change the
// backend after Solve.
func (e *Evaluator) ReadValue(n Node) Result {
	if n == nil {
		return UnknownResult()
	}
	switch n.Kind() {
	case TY_BOOL_VAR, TY_BV_VAR, TY_ARRAY_VAR:
		h, ok := e.vars.lookup(varID(n))
		if !ok {
			if n.Kind() == TY_BV_VAR {
				return UnknownBits(n.(BVVar).Width)
			}
			return UnknownResult()
		}
		return e.backend.ReadValue(h)
	case TY_RESOLVED:
		return e.ReadHandle(n.(Resolved).Handle)
	}
	return UnknownResult()
}

// ReadHandle returns the assignment of an already evaluated term.
func (e *Evaluator) ReadHandle(h Handle) Result {
	return e.backend.ReadValue(h)
}
