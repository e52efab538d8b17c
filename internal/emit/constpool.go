package emit

import "github.com/pirlower/pirlower/internal/pir"

// ConstPool interns constants encountered during emission so BCPushConst
// can reference them by index rather than carrying the literal inline.
type ConstPool struct {
	vals []*pir.Const
	idx  map[pir.ID]int
}

func NewConstPool() *ConstPool {
	return &ConstPool{idx: make(map[pir.ID]int)}
}

func (p *ConstPool) Intern(c *pir.Const) int {
	if i, ok := p.idx[c.ValueID()]; ok {
		return i
	}
	i := len(p.vals)
	p.vals = append(p.vals, c)
	p.idx[c.ValueID()] = i
	return i
}

func (p *ConstPool) Values() []*pir.Const { return p.vals }
