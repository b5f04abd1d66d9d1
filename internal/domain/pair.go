package domain

import "fmt"

// PairKey identifies a two-party conversation independent of direction.
// Low is always <= High.
type PairKey struct {
	Low  uint
	High uint
}

// NewPairKey returns the canonical key for the unordered pair (a, b).
func NewPairKey(a, b uint) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

// Other returns the participant that is not id. For a self-pair it returns id.
func (p PairKey) Other(id uint) uint {
	if p.Low == id {
		return p.High
	}
	return p.Low
}

// Contains reports whether id takes part in the conversation.
func (p PairKey) Contains(id uint) bool { return p.Low == id || p.High == id }

// Less orders keys by Low then High.
func (p PairKey) Less(o PairKey) bool {
	if p.Low != o.Low {
		return p.Low < o.Low
	}
	return p.High < o.High
}

func (p PairKey) String() string { return fmt.Sprintf("%d-%d", p.Low, p.High) }
