package tickdata

import (
	cons "github.com/ftchann/thermo-amm/lib/constants"

	"lukechampine.com/uint128"
)

type page struct {
	ticks       [cons.TickArraySize]Tick
	initialized uint128.Uint128 // bit i set when ticks[i] holds a value
}

// ArenaStore keeps ticks in fixed-size pages, one per tick array, allocated
// from a flat arena and addressed by page id.
type ArenaStore struct {
	tickSpacing int32
	pages       []page
	slots       map[int32]int
}

func NewArenaStore(tickSpacing int32) *ArenaStore {
	return &ArenaStore{
		tickSpacing: tickSpacing,
		slots:       make(map[int32]int),
	}
}

func (s *ArenaStore) locate(index int32) (int32, uint) {
	id := ArrayIndex(index, s.tickSpacing)
	start, _ := arrayBounds(id, s.tickSpacing)
	return id, uint((index - start) / s.tickSpacing)
}

func (s *ArenaStore) GetTick(index int32) (Tick, bool) {
	id, off := s.locate(index)
	slot, ok := s.slots[id]
	if !ok {
		return Tick{}, false
	}
	p := &s.pages[slot]
	if p.initialized.Rsh(off).And64(1).IsZero() {
		return Tick{}, false
	}
	return p.ticks[off], true
}

func (s *ArenaStore) SetTick(index int32, tick Tick) {
	id, off := s.locate(index)
	slot, ok := s.slots[id]
	if !ok {
		s.pages = append(s.pages, page{})
		slot = len(s.pages) - 1
		s.slots[id] = slot
	}
	p := &s.pages[slot]
	p.ticks[off] = tick
	p.initialized = p.initialized.Or(uint128.From64(1).Lsh(off))
}

// Pages returns the number of tick arrays allocated so far.
func (s *ArenaStore) Pages() int {
	return len(s.pages)
}

// Overlay buffers writes on top of a base store. Dropping it discards them.
type Overlay struct {
	base   TickStore
	writes map[int32]Tick
}

func NewOverlay(base TickStore) *Overlay {
	return &Overlay{
		base:   base,
		writes: make(map[int32]Tick),
	}
}

func (o *Overlay) GetTick(index int32) (Tick, bool) {
	if tick, ok := o.writes[index]; ok {
		return tick, true
	}
	return o.base.GetTick(index)
}

func (o *Overlay) SetTick(index int32, tick Tick) {
	o.writes[index] = tick
}

// Commit flushes the buffered writes into the base store.
func (o *Overlay) Commit() {
	for index, tick := range o.writes {
		o.base.SetTick(index, tick)
	}
	o.writes = make(map[int32]Tick)
}

func (o *Overlay) Dirty() int {
	return len(o.writes)
}
