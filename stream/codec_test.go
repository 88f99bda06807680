package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/task"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
	"google.golang.org/protobuf/encoding/protowire"
)

func corridor(t *testing.T) *environment.Environment {
	t.Helper()
	env, err := environment.Builtin("corridor")
	require.NoError(t, err)
	return env
}

func TestGeometryFrame(t *testing.T) {
	env := corridor(t)
	fr, err := Decode(EncodeGeometry(env))
	require.NoError(t, err)
	assert.Equal(t, KindGeometry, fr.Kind)
	assert.Equal(t, env.Name, fr.Name)
	require.Len(t, fr.Walls, len(env.Walls))
	for i, w := range env.Walls {
		assert.Equal(t, [2]geometry.Vector{w.A, w.B}, fr.Walls[i])
	}
	assert.Len(t, fr.TimingLines, len(env.TimingLines))
	zones := 0
	for _, f := range env.Flows {
		zones += len(f.Entries) + len(f.Targets)
	}
	require.Len(t, fr.Zones, zones)
	assert.Equal(t, env.Flows[0].Direction, fr.Zones[0].Direction)
	assert.Equal(t, RoleEntry, fr.Zones[0].Role)
	assert.Equal(t, env.Flows[0].Entries[0].Vertices(), fr.Zones[0].Points)
	assert.Equal(t, [4]float64{env.Bounds.Min.X(), env.Bounds.Min.Y(), env.Bounds.Max.X(), env.Bounds.Max.Y()}, fr.Bounds)
}

func TestSnapshotFrame(t *testing.T) {
	s := task.Snapshot{
		Step: 42,
		T:    4.2,
		Agents: []entity.AgentView{
			{ID: 3, Position: geometry.Vector{X: 1.5, Y: -2}, Velocity: geometry.Vector{X: 1.3}, Direction: environment.Backward, Etiquette: entity.StayLeft},
			{ID: 7, Position: geometry.Vector{X: 20, Y: 3}, Velocity: geometry.Vector{X: -1.1, Y: .2}, Direction: environment.Forward, Etiquette: entity.RandomChoice},
		},
		Arrived: 2,
		Counts:  entity.PopulationCounts{Spawned: 10, Arrived: 6, Discarded: 2, Blocked: 1},
	}
	fr, err := Decode(EncodeSnapshot(s))
	require.NoError(t, err)
	assert.Equal(t, KindSnapshot, fr.Kind)
	assert.Equal(t, s.Step, fr.Step)
	assert.Equal(t, s.T, fr.T)
	assert.Equal(t, s.Agents, fr.Agents)
	assert.Equal(t, s.Counts, fr.Counts)
	assert.Equal(t, 2, fr.Arrived)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte{0x0a})
	assert.ErrorIs(t, err, errMalformed)

	b := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, 9)
	_, err = Decode(b)
	assert.ErrorIs(t, err, errMalformed)

	// 未知字段被忽略
	b = protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(KindSnapshot))
	b = protowire.AppendTag(b, 99, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 1)
	fr, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, KindSnapshot, fr.Kind)
}
