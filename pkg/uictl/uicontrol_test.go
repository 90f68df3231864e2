package uictl_test

import (
	"testing"

	"github.com/alkime/rapidvoice/pkg/uictl"
	"github.com/stretchr/testify/assert"
)

func TestDialFunc(t *testing.T) {
	n := 0
	var d uictl.Dial[int] = uictl.DialFunc[int](func() int {
		n++
		return n
	})

	assert.Equal(t, 1, d.Read())
	assert.Equal(t, 2, d.Read())
}

func TestFixed(t *testing.T) {
	var d uictl.Dial[float64] = uictl.Fixed[float64](0.5)
	assert.InDelta(t, 0.5, d.Read(), 1e-9)
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, want float64
	}{
		{-1, 0},
		{0.25, 0.25},
		{3, 1},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, uictl.Clamp(tt.v, 0, 1), 1e-9)
	}
}
