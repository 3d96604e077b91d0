package satbackend

import (
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/borzacchiello/dsmt"
)

// blaster builds bit-level circuits. Bit-vectors are slices of literals,
// least significant bit first.
type blaster struct {
	c *logic.C
}

func (b *blaster) t() z.Lit { return b.c.T }
func (b *blaster) f() z.Lit { return b.c.T.Not() }

func (b *blaster) lit(v bool) z.Lit {
	if v {
		return b.t()
	}
	return b.f()
}

func (b *blaster) fresh(width uint) []z.Lit {
	bits := make([]z.Lit, width)
	for i := range bits {
		bits[i] = b.c.Lit()
	}
	return bits
}

func (b *blaster) constant(c *dsmt.BVConst) []z.Lit {
	bits := make([]z.Lit, c.Size)
	for i := range bits {
		bits[i] = b.lit(c.Bit(uint(i)))
	}
	return bits
}

func (b *blaster) fill(width uint, m z.Lit) []z.Lit {
	bits := make([]z.Lit, width)
	for i := range bits {
		bits[i] = m
	}
	return bits
}

func (b *blaster) and(x, y z.Lit) z.Lit  { return b.c.And(x, y) }
func (b *blaster) or(x, y z.Lit) z.Lit   { return b.c.Or(x, y) }
func (b *blaster) xor(x, y z.Lit) z.Lit  { return b.c.Xor(x, y) }
func (b *blaster) xnor(x, y z.Lit) z.Lit { return b.c.Xor(x, y).Not() }

func (b *blaster) ite(i, t, e z.Lit) z.Lit {
	return b.c.Choice(i, t, e)
}

func (b *blaster) ands(ms []z.Lit) z.Lit {
	res := b.t()
	for _, m := range ms {
		res = b.and(res, m)
	}
	return res
}

func (b *blaster) ors(ms []z.Lit) z.Lit {
	res := b.f()
	for _, m := range ms {
		res = b.or(res, m)
	}
	return res
}

func (b *blaster) bitwise(x, y []z.Lit, op func(z.Lit, z.Lit) z.Lit) []z.Lit {
	res := make([]z.Lit, len(x))
	for i := range x {
		res[i] = op(x[i], y[i])
	}
	return res
}

func (b *blaster) not(x []z.Lit) []z.Lit {
	res := make([]z.Lit, len(x))
	for i := range x {
		res[i] = x[i].Not()
	}
	return res
}

func (b *blaster) iteBits(i z.Lit, t, e []z.Lit) []z.Lit {
	res := make([]z.Lit, len(t))
	for j := range t {
		res[j] = b.ite(i, t[j], e[j])
	}
	return res
}

// addc is a ripple carry adder. It returns the sum and the carry out.
func (b *blaster) addc(x, y []z.Lit, carry z.Lit) ([]z.Lit, z.Lit) {
	res := make([]z.Lit, len(x))
	for i := range x {
		s := b.xor(x[i], y[i])
		res[i] = b.xor(s, carry)
		carry = b.or(b.and(x[i], y[i]), b.and(carry, s))
	}
	return res, carry
}

func (b *blaster) add(x, y []z.Lit) []z.Lit {
	res, _ := b.addc(x, y, b.f())
	return res
}

func (b *blaster) sub(x, y []z.Lit) []z.Lit {
	res, _ := b.addc(x, b.not(y), b.t())
	return res
}

func (b *blaster) neg(x []z.Lit) []z.Lit {
	return b.sub(b.fill(uint(len(x)), b.f()), x)
}

func (b *blaster) mul(x, y []z.Lit) []z.Lit {
	w := len(x)
	acc := b.fill(uint(w), b.f())
	for i := 0; i < w; i++ {
		partial := make([]z.Lit, w)
		for j := 0; j < w; j++ {
			if j < i {
				partial[j] = b.f()
			} else {
				partial[j] = b.and(x[j-i], y[i])
			}
		}
		acc = b.add(acc, partial)
	}
	return acc
}

// udivrem is restoring division. Division by zero gives an all ones
// quotient and the dividend as remainder, as in SMT-LIB.
func (b *blaster) udivrem(x, y []z.Lit) ([]z.Lit, []z.Lit) {
	w := len(x)
	q := make([]z.Lit, w)
	r := b.fill(uint(w+1), b.f())
	d := append(append([]z.Lit(nil), y...), b.f())
	for i := w - 1; i >= 0; i-- {
		shifted := append([]z.Lit{x[i]}, r[:w]...)
		diff, noBorrow := b.addc(shifted, b.not(d), b.t())
		q[i] = noBorrow
		r = b.iteBits(noBorrow, diff, shifted)
	}
	return q, r[:w]
}

func (b *blaster) sdivrem(x, y []z.Lit) ([]z.Lit, []z.Lit) {
	w := len(x)
	sx, sy := x[w-1], y[w-1]
	ax := b.iteBits(sx, b.neg(x), x)
	ay := b.iteBits(sy, b.neg(y), y)
	q, r := b.udivrem(ax, ay)
	return b.iteBits(b.xor(sx, sy), b.neg(q), q), b.iteBits(sx, b.neg(r), r)
}

// shift is a barrel shifter. left selects the direction, fill is shifted in.
func (b *blaster) shift(x, amount []z.Lit, left bool, fill z.Lit) []z.Lit {
	w := len(x)
	cur := x
	overflow := make([]z.Lit, 0)
	for k := 0; k < len(amount); k++ {
		dist := 1 << uint(k)
		if k >= 31 || dist >= w {
			overflow = append(overflow, amount[k])
			continue
		}
		moved := make([]z.Lit, w)
		for i := 0; i < w; i++ {
			src := i + dist
			if left {
				src = i - dist
			}
			if src < 0 || src >= w {
				moved[i] = fill
			} else {
				moved[i] = cur[src]
			}
		}
		cur = b.iteBits(amount[k], moved, cur)
	}
	return b.iteBits(b.ors(overflow), b.fill(uint(w), fill), cur)
}

func (b *blaster) eq(x, y []z.Lit) z.Lit {
	return b.ands(b.bitwise(x, y, b.xnor))
}

// ult walks from the least significant bit: the highest differing bit
// decides.
func (b *blaster) ult(x, y []z.Lit) z.Lit {
	lt := b.f()
	for i := range x {
		lt = b.or(b.and(x[i].Not(), y[i]), b.and(b.xnor(x[i], y[i]), lt))
	}
	return lt
}

func (b *blaster) slt(x, y []z.Lit) z.Lit {
	w := len(x)
	fx := append(append([]z.Lit(nil), x[:w-1]...), x[w-1].Not())
	fy := append(append([]z.Lit(nil), y[:w-1]...), y[w-1].Not())
	return b.ult(fx, fy)
}

// equalsConst is true when x holds the value v.
func (b *blaster) equalsConst(x []z.Lit, v uint64) z.Lit {
	ms := make([]z.Lit, len(x))
	for i := range x {
		if v&(1<<uint(i)) != 0 {
			ms[i] = x[i]
		} else {
			ms[i] = x[i].Not()
		}
	}
	return b.ands(ms)
}
