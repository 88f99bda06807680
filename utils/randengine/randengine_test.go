package randengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameSeedSameSequence(t *testing.T) {
	a := New(7)
	b := New(7)
	for range 100 {
		assert.Equal(t, a.Float64(), b.Float64())
	}
	assert.Equal(t, uint64(7), a.Seed())
}

func TestPTrueBounds(t *testing.T) {
	e := New(1)
	for range 1000 {
		assert.False(t, e.PTrue(0))
		assert.True(t, e.PTrue(1))
	}
}

func TestDiscreteDistribution(t *testing.T) {
	e := New(3)
	counts := make([]int, 3)
	for range 10000 {
		counts[e.DiscreteDistribution([]float64{0.5, 0, 0.5})]++
	}
	assert.Zero(t, counts[1])
	assert.InDelta(t, 5000, counts[0], 300)
	assert.InDelta(t, 5000, counts[2], 300)
}

func TestUniformAndBoundedNorm(t *testing.T) {
	e := New(11)
	for range 1000 {
		u := e.Uniform(2, 3)
		assert.GreaterOrEqual(t, u, 2.0)
		assert.Less(t, u, 3.0)
		n := e.BoundedNorm(1.5)
		assert.LessOrEqual(t, n, 1.5)
		assert.GreaterOrEqual(t, n, -1.5)
	}
}
