package pedestrian

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
)

var (
	east = geometry.Vector{X: 1}
	west = geometry.Vector{X: -1}
)

func TestGoalForce(t *testing.T) {
	f := GoalForce(geometry.Vector{}, geometry.Vector{}, geometry.Vector{X: 10}, 1.3, .5)
	assert.InDelta(t, 2.6, f.X, 1e-12)
	assert.InDelta(t, 0, f.Y, 1e-12)

	// 已达到期望速度时不再加速
	f = GoalForce(geometry.Vector{}, geometry.Vector{X: 1.3}, geometry.Vector{X: 10}, 1.3, .5)
	assert.InDelta(t, 0, f.Len(), 1e-12)

	at := geometry.Vector{X: 3, Y: 4}
	assert.Equal(t, geometry.Vector{}, GoalForce(at, geometry.Vector{X: 1}, at, 1.3, .5))
}

func TestIsHeadOn(t *testing.T) {
	p := config.Default().Force
	self := Body{ID: 0, Position: geometry.Vector{X: 0, Y: 0}, Heading: east}
	cases := []struct {
		name  string
		other Body
		want  bool
	}{
		{"opposed ahead", Body{ID: 1, Position: geometry.Vector{X: 2, Y: .3}, Heading: west}, true},
		{"same direction", Body{ID: 1, Position: geometry.Vector{X: 2}, Heading: east}, false},
		{"behind", Body{ID: 1, Position: geometry.Vector{X: -2}, Heading: west}, false},
		{"wide lateral offset", Body{ID: 1, Position: geometry.Vector{X: 2, Y: 2}, Heading: west}, false},
		{"too far", Body{ID: 1, Position: geometry.Vector{X: 5}, Heading: west}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, isHeadOn(self, c.other, p))
		})
	}
}

func TestAgentForce(t *testing.T) {
	p := config.Default().Force
	self := Body{ID: 0, Position: geometry.Vector{}, Heading: east}

	far := Body{ID: 1, Position: geometry.Vector{X: p.InteractionRadius + .1}, Heading: west}
	assert.Equal(t, geometry.Vector{}, AgentForce(self, far, SideNone, p))

	touching := Body{ID: 1, Position: geometry.Vector{X: 2 * p.BodyRadius}, Heading: west}
	f := AgentForce(self, touching, SideNone, p)
	assert.InDelta(t, -p.AgentStrength, f.X, 1e-9)
	assert.InDelta(t, 0, f.Y, 1e-12)

	left := AgentForce(self, touching, SideLeft, p)
	right := AgentForce(self, touching, SideRight, p)
	assert.InDelta(t, p.EtiquetteStrength, left.Y, 1e-9)
	assert.InDelta(t, -p.EtiquetteStrength, right.Y, 1e-9)
	assert.InDelta(t, f.X, left.X, 1e-12)

	// 重合时两人被分到不同侧
	a := AgentForce(self, Body{ID: 1, Heading: west}, SideNone, p)
	b := AgentForce(Body{ID: 1, Heading: west}, self, SideNone, p)
	assert.Greater(t, a.Y, 0.)
	assert.Less(t, b.Y, 0.)
}

func TestWallForce(t *testing.T) {
	p := config.Default().Force
	w := environment.Wall{A: geometry.Vector{X: 0}, B: geometry.Vector{X: 10}}
	f := WallForce(geometry.Vector{X: 5, Y: p.BodyRadius}, w, p)
	assert.InDelta(t, 0, f.X, 1e-12)
	assert.InDelta(t, p.WallStrength, f.Y, 1e-9)

	assert.Equal(t, geometry.Vector{}, WallForce(geometry.Vector{X: 5, Y: p.WallRadius + .1}, w, p))
}

func TestNetForceEtiquette(t *testing.T) {
	env, err := environment.Open()
	require.NoError(t, err)
	p := config.Default().Force

	self := Body{ID: 0, Position: geometry.Vector{X: 10, Y: 5}, Heading: east}
	other := Body{ID: 1, Position: geometry.Vector{X: 11.5, Y: 5}, Heading: west}
	bodies := []Body{self, other}
	in := ForceInput{
		Self:         self,
		Target:       geometry.Vector{X: 18, Y: 5},
		DesiredSpeed: 1.3,
		Encounters:   map[int32]Side{},
	}

	in.Etiquette = entity.StayLeft
	assert.Greater(t, NetForce(in, bodies, []int{1}, env, p).Y, 0.)

	in.Etiquette = entity.StayRight
	assert.Less(t, NetForce(in, bodies, []int{1}, env, p).Y, 0.)

	// 未抛硬币前对称
	in.Etiquette = entity.RandomChoice
	assert.InDelta(t, 0, NetForce(in, bodies, []int{1}, env, p).Y, 1e-12)

	in.Encounters[1] = SideRight
	assert.Less(t, NetForce(in, bodies, []int{1}, env, p).Y, 0.)

	// 自身下标出现在邻居中时忽略
	alone := NetForce(in, bodies, []int{0}, env, p)
	assert.InDelta(t, 2*1.3, alone.X, 1e-9)
}

func TestNetForceClamped(t *testing.T) {
	env, err := environment.Corridor()
	require.NoError(t, err)
	p := config.Default().Force

	self := Body{ID: 0, Position: geometry.Vector{X: 10, Y: .1}, Heading: east}
	bodies := []Body{self}
	neighbors := []int{}
	for i := range 6 {
		bodies = append(bodies, Body{
			ID:       int32(i + 1),
			Position: geometry.Vector{X: 10 + .05*float64(i), Y: .3},
			Heading:  west,
		})
		neighbors = append(neighbors, i+1)
	}
	f := NetForce(ForceInput{Self: self, Target: geometry.Vector{X: 24, Y: 3}, DesiredSpeed: 1.3}, bodies, neighbors, env, p)
	assert.LessOrEqual(t, f.Len(), p.MaxForce+1e-9)
	assert.False(t, math.IsNaN(f.X))
}
