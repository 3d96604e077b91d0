package dsmt

import "fmt"

// Kind is the tag of a formula node. Evaluation dispatches on it.
type Kind int

const (
	TY_INVALID Kind = iota

	TY_BOOL_VAR
	TY_BV_VAR
	TY_ARRAY_VAR

	TY_BVUINT
	TY_BVSINT
	TY_BVBIN
	TY_BVHEX

	TY_EXTRACT
	TY_ZERO_EXTEND
	TY_SIGN_EXTEND

	TY_RESOLVED

	TY_TRUE
	TY_FALSE
	TY_NOT
	TY_EQUAL
	TY_NEQUAL
	TY_AND
	TY_NAND
	TY_OR
	TY_NOR
	TY_XOR
	TY_XNOR
	TY_IMPLIES
	TY_ITE

	TY_BIT0
	TY_BIT1
	TY_BVNOT
	TY_BVNEG
	TY_BVAND
	TY_BVNAND
	TY_BVOR
	TY_BVNOR
	TY_BVXOR
	TY_BVXNOR
	TY_BVCOMP
	TY_BVADD
	TY_BVSUB
	TY_BVMUL
	TY_BVUDIV
	TY_BVUREM
	TY_BVSDIV
	TY_BVSREM
	TY_BVSHL
	TY_BVLSHR
	TY_BVASHR
	TY_CONCAT
	TY_BVULT
	TY_BVULE
	TY_BVUGT
	TY_BVUGE
	TY_BVSLT
	TY_BVSLE
	TY_BVSGT
	TY_BVSGE

	TY_SELECT
	TY_STORE

	numKinds
)

type kindInfo struct {
	name  string
	arity int
}

// arity is -1 for kinds that are not generic operators.
var kinds = [numKinds]kindInfo{
	TY_INVALID: {"invalid", -1},

	TY_BOOL_VAR:  {"bool_var", -1},
	TY_BV_VAR:    {"bv_var", -1},
	TY_ARRAY_VAR: {"array_var", -1},

	TY_BVUINT: {"bvuint", -1},
	TY_BVSINT: {"bvsint", -1},
	TY_BVBIN:  {"bvbin", -1},
	TY_BVHEX:  {"bvhex", -1},

	TY_EXTRACT:     {"extract", -1},
	TY_ZERO_EXTEND: {"zero_extend", -1},
	TY_SIGN_EXTEND: {"sign_extend", -1},

	TY_RESOLVED: {"resolved", -1},

	TY_TRUE:    {"true", 0},
	TY_FALSE:   {"false", 0},
	TY_NOT:     {"not", 1},
	TY_EQUAL:   {"=", 2},
	TY_NEQUAL:  {"distinct", 2},
	TY_AND:     {"and", 2},
	TY_NAND:    {"nand", 2},
	TY_OR:      {"or", 2},
	TY_NOR:     {"nor", 2},
	TY_XOR:     {"xor", 2},
	TY_XNOR:    {"xnor", 2},
	TY_IMPLIES: {"=>", 2},
	TY_ITE:     {"ite", 3},

	TY_BIT0:   {"bit0", 0},
	TY_BIT1:   {"bit1", 0},
	TY_BVNOT:  {"bvnot", 1},
	TY_BVNEG:  {"bvneg", 1},
	TY_BVAND:  {"bvand", 2},
	TY_BVNAND: {"bvnand", 2},
	TY_BVOR:   {"bvor", 2},
	TY_BVNOR:  {"bvnor", 2},
	TY_BVXOR:  {"bvxor", 2},
	TY_BVXNOR: {"bvxnor", 2},
	TY_BVCOMP: {"bvcomp", 2},
	TY_BVADD:  {"bvadd", 2},
	TY_BVSUB:  {"bvsub", 2},
	TY_BVMUL:  {"bvmul", 2},
	TY_BVUDIV: {"bvudiv", 2},
	TY_BVUREM: {"bvurem", 2},
	TY_BVSDIV: {"bvsdiv", 2},
	TY_BVSREM: {"bvsrem", 2},
	TY_BVSHL:  {"bvshl", 2},
	TY_BVLSHR: {"bvlshr", 2},
	TY_BVASHR: {"bvashr", 2},
	TY_CONCAT: {"concat", 2},
	TY_BVULT:  {"bvult", 2},
	TY_BVULE:  {"bvule", 2},
	TY_BVUGT:  {"bvugt", 2},
	TY_BVUGE:  {"bvuge", 2},
	TY_BVSLT:  {"bvslt", 2},
	TY_BVSLE:  {"bvsle", 2},
	TY_BVSGT:  {"bvsgt", 2},
	TY_BVSGE:  {"bvsge", 2},

	TY_SELECT: {"select", 2},
	TY_STORE:  {"store", 3},
}

func (k Kind) valid() bool {
	return k > TY_INVALID && k < numKinds
}

// Arity returns the number of operands of a generic operator kind, or -1 for
// variables, literals and the parameterized kinds.
func (k Kind) Arity() int {
	if !k.valid() {
		return -1
	}
	return kinds[k].arity
}

// IsOperator reports whether k is handled by the generic operator rule.
func (k Kind) IsOperator() bool {
	return k.Arity() >= 0
}

// IsVariable reports whether k names a variable.
func (k Kind) IsVariable() bool {
	return k == TY_BOOL_VAR || k == TY_BV_VAR || k == TY_ARRAY_VAR
}

// IsLiteral reports whether k names one of the literal encodings.
func (k Kind) IsLiteral() bool {
	return k >= TY_BVUINT && k <= TY_BVHEX
}

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kinds[k].name
}
