package environment

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/randengine"
)

func boxWalls(w, h float64) []Wall {
	return []Wall{
		{A: geometry.Vector{X: 0, Y: 0}, B: geometry.Vector{X: w, Y: 0}},
		{A: geometry.Vector{X: 0, Y: h}, B: geometry.Vector{X: w, Y: h}},
		{A: geometry.Vector{X: 0, Y: 0}, B: geometry.Vector{X: 0, Y: h}},
		{A: geometry.Vector{X: w, Y: 0}, B: geometry.Vector{X: w, Y: h}},
	}
}

func requireConfigurationError(t *testing.T, err error) *config.ConfigurationError {
	t.Helper()
	var cerr *config.ConfigurationError
	require.True(t, errors.As(err, &cerr), "want ConfigurationError, got %v", err)
	return cerr
}

func TestBuiltinsAreValid(t *testing.T) {
	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			env, err := Builtin(name)
			require.NoError(t, err)
			assert.Equal(t, name, env.Name)
			assert.NotEmpty(t, env.Flows)
		})
	}
	_, err := Builtin("nowhere")
	assert.Error(t, err)
}

func TestCorridorGeometry(t *testing.T) {
	env, err := Corridor()
	require.NoError(t, err)
	w, h := env.Size()
	assert.Equal(t, CorridorLength, w)
	assert.Equal(t, CorridorWidth, h)
	assert.Len(t, env.TimingLines, 2)

	fwd, ok := env.Flow(Forward)
	require.True(t, ok)
	assert.True(t, fwd.Entries[0].Contains(geometry.Vector{X: 1, Y: 3}))
	assert.False(t, fwd.Entries[0].Contains(geometry.Vector{X: 3, Y: 3}))
	assert.True(t, fwd.Targets[0].Contains(geometry.Vector{X: 24, Y: 3}))
	assert.InDelta(t, 5.0, fwd.Entries[0].Area(), 1e-9)
	_, ok = env.Flow(Direction(7))
	assert.False(t, ok)

	assert.True(t, env.InBounds(geometry.Vector{X: 12, Y: 3}))
	assert.False(t, env.InBounds(geometry.Vector{X: 12, Y: -0.1}))
	assert.True(t, env.Blocked(geometry.Vector{X: 12, Y: 1}, geometry.Vector{X: 12, Y: -1}))
	assert.False(t, env.Blocked(geometry.Vector{X: 2, Y: 1}, geometry.Vector{X: 20, Y: 5}))
	assert.Equal(t, []int{0}, env.WallsWithin(geometry.Vector{X: 12, Y: 0.5}, 1.0))
	assert.Empty(t, env.WallsWithin(geometry.Vector{X: 12, Y: 3}, 1.0))
}

func TestZoneSample(t *testing.T) {
	e := randengine.New(5)
	triangle := NewZone(geometry.Vector{X: 0, Y: 0}, geometry.Vector{X: 4, Y: 0}, geometry.Vector{X: 0, Y: 4})
	assert.InDelta(t, 8.0, triangle.Area(), 1e-9)
	for range 200 {
		assert.True(t, triangle.Contains(triangle.Sample(e)))
	}
	assert.Len(t, triangle.Vertices(), 3)
}

func TestValidateZeroAreaEntry(t *testing.T) {
	flows := []Flow{{
		Direction: Forward,
		Entries:   []Zone{NewRect(1, 1, 1, 3)},
		Targets:   []Zone{NewRect(8, 1, 9, 3)},
	}}
	_, err := New("flat", boxWalls(10, 4), flows, nil, nil)
	cerr := requireConfigurationError(t, err)
	assert.Equal(t, "flow 0 entry 0", cerr.Object)
}

func TestValidateEntryOnWall(t *testing.T) {
	walls := append(boxWalls(10, 4), Wall{A: geometry.Vector{X: 5, Y: 1}, B: geometry.Vector{X: 5, Y: 2}})
	flows := []Flow{{
		Direction: Forward,
		Entries:   []Zone{NewRect(4.5, .5, 5.5, 3.5)},
		Targets:   []Zone{NewRect(8, 1, 9, 3)},
	}}
	_, err := New("on-wall", walls, flows, nil, nil)
	cerr := requireConfigurationError(t, err)
	assert.Contains(t, cerr.Reason, "wall")
}

func TestValidateZoneBeyondBounds(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 4}}
	entry := func(z Zone) []Flow {
		return []Flow{{Direction: Forward, Entries: []Zone{z}, Targets: []Zone{NewRect(8, .5, 9.5, 3.5)}}}
	}
	// 形心在边界内，但左侧伸出边界
	_, err := New("spill", nil, entry(NewRect(-0.8, .5, 1.5, 3.5)), nil, &bounds)
	cerr := requireConfigurationError(t, err)
	assert.Equal(t, "flow 0 entry 0", cerr.Object)
	assert.Contains(t, cerr.Reason, "bounds")

	target := []Flow{{Direction: Forward, Entries: []Zone{NewRect(.5, .5, 1.5, 3.5)}, Targets: []Zone{NewRect(8, .5, 10.2, 3.5)}}}
	_, err = New("spill", nil, target, nil, &bounds)
	cerr = requireConfigurationError(t, err)
	assert.Equal(t, "flow 0 target 0", cerr.Object)

	// 贴着边界的区域合法
	_, err = New("flush", nil, entry(NewRect(0, 0, 1.5, 4)), nil, &bounds)
	assert.NoError(t, err)
}

func TestValidateUnreachableTarget(t *testing.T) {
	walls := append(boxWalls(10, 4), Wall{A: geometry.Vector{X: 5, Y: 0}, B: geometry.Vector{X: 5, Y: 4}})
	flows := []Flow{{
		Direction: Forward,
		Entries:   []Zone{NewRect(1, 1, 2, 3)},
		Targets:   []Zone{NewRect(8, 1, 9, 3)},
	}}
	_, err := New("split", walls, flows, nil, nil)
	cerr := requireConfigurationError(t, err)
	assert.Contains(t, cerr.Reason, "reachable")
}

func TestValidateMissingTargets(t *testing.T) {
	flows := []Flow{{Direction: Forward, Entries: []Zone{NewRect(1, 1, 2, 3)}}}
	_, err := New("no-target", boxWalls(10, 4), flows, nil, nil)
	requireConfigurationError(t, err)

	_, err = New("no-flow", boxWalls(10, 4), nil, nil, nil)
	requireConfigurationError(t, err)
}

func TestDescriptionBuild(t *testing.T) {
	d, err := ParseDescription([]byte(`
name: short
walls:
  - [0, 0, 10, 0]
  - [0, 4, 10, 4]
flows:
  - direction: 0
    entries: [[[1, 1], [2, 1], [2, 3], [1, 3]]]
    targets: [[[8, 1], [9, 1], [9, 3], [8, 3]]]
  - direction: 1
    entries: [[[8, 1], [9, 1], [9, 3], [8, 3]]]
    targets: [[[1, 1], [2, 1], [2, 3], [1, 3]]]
timing_lines:
  - [3, 0, 3, 4]
`))
	require.NoError(t, err)
	env, err := d.Build()
	require.NoError(t, err)
	assert.Equal(t, "short", env.Name)
	assert.Len(t, env.Walls, 2)
	assert.Len(t, env.Flows, 2)
	assert.Len(t, env.TimingLines, 1)

	d.Walls = append(d.Walls, []float64{1, 2, 3})
	_, err = d.Build()
	requireConfigurationError(t, err)

	_, err = ParseDescription([]byte("unknown_key: 1\n"))
	assert.Error(t, err)
}
