package dsmt

// Handle is a backend term. The evaluator never looks inside it.
type Handle any

// Backend is a solver the evaluator replays formulas into.
//
// Create registers a new term of the given kind. p is nil for generic
// operators, and args holds the handles of the already evaluated operands in
// order. Two identical calls must produce two distinct terms: variable
// de-duplication is done by the Evaluator.
//
// Assertion adds a formula permanently; Assumption adds it for the next Solve
// only. ReadValue is meaningful after Solve returned true with no assertion
// or assumption in between. It returns an unknown result when it has no
// value to give, and it must never panic.
type Backend interface {
	Create(kind Kind, p Payload, args ...Handle) (Handle, error)
	Assertion(h Handle) error
	Assumption(h Handle) error
	Solve() (bool, error)
	ReadValue(h Handle) Result
}
