package position

import "sort"

// Book holds the positions of one pool.
type Book map[Key]*Info

func (b Book) Get(owner string, tickLower, tickUpper int32) (*Info, bool) {
	pos, ok := b[NewKey(owner, tickLower, tickUpper)]
	return pos, ok
}

func (b Book) Put(pos *Info) {
	b[pos.Key()] = pos
}

func (b Book) Delete(key Key) {
	delete(b, key)
}

func (b Book) Clone() Book {
	c := make(Book, len(b))
	for k, v := range b {
		c[k] = v.Clone()
	}
	return c
}

// Sorted returns the positions ordered by owner, then range.
func (b Book) Sorted() []*Info {
	out := make([]*Info, 0, len(b))
	for _, v := range b {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		if out[i].TickLower != out[j].TickLower {
			return out[i].TickLower < out[j].TickLower
		}
		return out[i].TickUpper < out[j].TickUpper
	})
	return out
}
