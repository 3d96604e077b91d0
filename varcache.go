package dsmt

// varCache maps variable ids to the handle created for them. Entries are
// never replaced or evicted.
type varCache struct {
	handles map[uint]Handle
}

func newVarCache() *varCache {
	return &varCache{handles: make(map[uint]Handle)}
}

func (c *varCache) lookup(id uint) (Handle, bool) {
	h, ok := c.handles[id]
	return h, ok
}

func (c *varCache) insert(id uint, h Handle) {
	if _, ok := c.handles[id]; ok {
		panic("varCache: id inserted twice")
	}
	c.handles[id] = h
}

func (c *varCache) len() int {
	return len(c.handles)
}

// varID returns the identity of a variable node.
func varID(n Node) uint {
	switch n.Kind() {
	case TY_BOOL_VAR:
		return n.(BoolVar).ID
	case TY_BV_VAR:
		return n.(BVVar).ID
	case TY_ARRAY_VAR:
		return n.(ArrayVar).ID
	}
	panic("varID: not a variable")
}

// symbol is the declaration payload sent on the first use of a variable.
func symbol(n Node) Symbol {
	switch n.Kind() {
	case TY_BV_VAR:
		v := n.(BVVar)
		return Symbol{ID: v.ID, Width: v.Width}
	case TY_ARRAY_VAR:
		v := n.(ArrayVar)
		return Symbol{ID: v.ID, IndexWidth: v.IndexWidth, ElemWidth: v.ElemWidth}
	}
	return Symbol{ID: varID(n)}
}
