// Package uictl defines read-only controls the terminal UI polls.
package uictl

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

// Dial is a control that can read some value.
type Dial[N Number] interface {
	Read() N
}

// DialFunc adapts a plain getter to a Dial.
type DialFunc[N Number] func() N

func (f DialFunc[N]) Read() N {
	return f()
}

// Fixed is a Dial that always reads the same value.
type Fixed[N Number] N

func (f Fixed[N]) Read() N {
	return N(f)
}

// Clamp limits v to [lo, hi].
func Clamp[N Number](v, lo, hi N) N {
	return max(lo, min(v, hi))
}
