package stream

import (
	"errors"
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/task"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
	"google.golang.org/protobuf/encoding/protowire"
)

// FrameKind 帧类型
type FrameKind int32

const (
	KindGeometry FrameKind = 1 // 静态几何，连接建立后首先发送
	KindSnapshot FrameKind = 2 // 每步快照
)

// 帧的字段编号（protobuf wire格式）
const (
	fieldKind        protowire.Number = 1
	fieldName        protowire.Number = 2
	fieldWall        protowire.Number = 3
	fieldZone        protowire.Number = 4
	fieldTimingLine  protowire.Number = 5
	fieldBounds      protowire.Number = 6
	fieldStep        protowire.Number = 7
	fieldT           protowire.Number = 8
	fieldAgent       protowire.Number = 9
	fieldCounts      protowire.Number = 10
	fieldArrivedStep protowire.Number = 11
)

// ZoneRole 区域在流向中的角色
type ZoneRole int32

const (
	RoleEntry  ZoneRole = 0
	RoleTarget ZoneRole = 1
)

// ZoneFrame 区域
type ZoneFrame struct {
	Direction environment.Direction
	Role      ZoneRole
	Points    []geometry.Vector
}

// Frame 解码后的帧
type Frame struct {
	Kind FrameKind

	// 几何帧
	Name        string
	Walls       [][2]geometry.Vector
	TimingLines [][2]geometry.Vector
	Zones       []ZoneFrame
	Bounds      [4]float64

	// 快照帧
	Step    int32
	T       float64
	Agents  []entity.AgentView
	Counts  entity.PopulationCounts
	Arrived int
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func encodeSegment(a, b geometry.Vector) []byte {
	var m []byte
	m = appendDouble(m, 1, a.X)
	m = appendDouble(m, 2, a.Y)
	m = appendDouble(m, 3, b.X)
	m = appendDouble(m, 4, b.Y)
	return m
}

// EncodeGeometry 编码环境的静态几何
func EncodeGeometry(env *environment.Environment) []byte {
	var b []byte
	b = appendVarint(b, fieldKind, uint64(KindGeometry))
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, env.Name)
	for _, w := range env.Walls {
		b = appendMessage(b, fieldWall, encodeSegment(w.A, w.B))
	}
	for _, l := range env.TimingLines {
		b = appendMessage(b, fieldTimingLine, encodeSegment(l.A, l.B))
	}
	for _, f := range env.Flows {
		for role, zones := range [][]environment.Zone{f.Entries, f.Targets} {
			for _, z := range zones {
				var m []byte
				m = protowire.AppendTag(m, 1, protowire.VarintType)
				m = protowire.AppendVarint(m, protowire.EncodeZigZag(int64(f.Direction)))
				m = appendVarint(m, 2, uint64(role))
				for _, p := range z.Vertices() {
					m = appendDouble(m, 3, p.X)
					m = appendDouble(m, 3, p.Y)
				}
				b = appendMessage(b, fieldZone, m)
			}
		}
	}
	for _, v := range []float64{env.Bounds.Min.X(), env.Bounds.Min.Y(), env.Bounds.Max.X(), env.Bounds.Max.Y()} {
		b = appendDouble(b, fieldBounds, v)
	}
	return b
}

// EncodeSnapshot 编码一步的快照
func EncodeSnapshot(s task.Snapshot) []byte {
	b := make([]byte, 0, 64+len(s.Agents)*48)
	b = appendVarint(b, fieldKind, uint64(KindSnapshot))
	b = appendVarint(b, fieldStep, uint64(s.Step))
	b = appendDouble(b, fieldT, s.T)
	for _, a := range s.Agents {
		var m []byte
		m = appendVarint(m, 1, uint64(a.ID))
		m = appendDouble(m, 2, a.Position.X)
		m = appendDouble(m, 3, a.Position.Y)
		m = appendDouble(m, 4, a.Velocity.X)
		m = appendDouble(m, 5, a.Velocity.Y)
		m = appendVarint(m, 6, protowire.EncodeZigZag(int64(a.Direction)))
		m = appendVarint(m, 7, uint64(a.Etiquette))
		b = appendMessage(b, fieldAgent, m)
	}
	var c []byte
	c = appendVarint(c, 1, uint64(s.Counts.Spawned))
	c = appendVarint(c, 2, uint64(s.Counts.Arrived))
	c = appendVarint(c, 3, uint64(s.Counts.Discarded))
	c = appendVarint(c, 4, uint64(s.Counts.Blocked))
	b = appendMessage(b, fieldCounts, c)
	b = appendVarint(b, fieldArrivedStep, uint64(s.Arrived))
	return b
}

var errMalformed = errors.New("malformed frame")

// fields 遍历消息的所有字段
func fields(b []byte, f func(num protowire.Number, typ protowire.Type, v uint64, msg []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		var v uint64
		var msg []byte
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			v, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			msg, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", errMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
		if err := f(num, typ, v, msg); err != nil {
			return err
		}
	}
	return nil
}

func decodeSegment(msg []byte) ([2]geometry.Vector, error) {
	var s [2]geometry.Vector
	err := fields(msg, func(num protowire.Number, _ protowire.Type, v uint64, _ []byte) error {
		x := math.Float64frombits(v)
		switch num {
		case 1:
			s[0].X = x
		case 2:
			s[0].Y = x
		case 3:
			s[1].X = x
		case 4:
			s[1].Y = x
		}
		return nil
	})
	return s, err
}

func decodeZone(msg []byte) (ZoneFrame, error) {
	var z ZoneFrame
	coords := make([]float64, 0)
	err := fields(msg, func(num protowire.Number, _ protowire.Type, v uint64, _ []byte) error {
		switch num {
		case 1:
			z.Direction = environment.Direction(protowire.DecodeZigZag(v))
		case 2:
			z.Role = ZoneRole(v)
		case 3:
			coords = append(coords, math.Float64frombits(v))
		}
		return nil
	})
	if len(coords)%2 != 0 {
		return z, fmt.Errorf("%w: odd number of zone coordinates", errMalformed)
	}
	for i := 0; i < len(coords); i += 2 {
		z.Points = append(z.Points, geometry.Vector{X: coords[i], Y: coords[i+1]})
	}
	return z, err
}

func decodeAgent(msg []byte) (entity.AgentView, error) {
	a := entity.AgentView{Status: entity.StatusActive}
	err := fields(msg, func(num protowire.Number, _ protowire.Type, v uint64, _ []byte) error {
		switch num {
		case 1:
			a.ID = int32(v)
		case 2:
			a.Position.X = math.Float64frombits(v)
		case 3:
			a.Position.Y = math.Float64frombits(v)
		case 4:
			a.Velocity.X = math.Float64frombits(v)
		case 5:
			a.Velocity.Y = math.Float64frombits(v)
		case 6:
			a.Direction = environment.Direction(protowire.DecodeZigZag(v))
		case 7:
			a.Etiquette = entity.Etiquette(v)
		}
		return nil
	})
	return a, err
}

func decodeCounts(msg []byte) (entity.PopulationCounts, error) {
	var c entity.PopulationCounts
	err := fields(msg, func(num protowire.Number, _ protowire.Type, v uint64, _ []byte) error {
		switch num {
		case 1:
			c.Spawned = int64(v)
		case 2:
			c.Arrived = int64(v)
		case 3:
			c.Discarded = int64(v)
		case 4:
			c.Blocked = int64(v)
		}
		return nil
	})
	return c, err
}

// Decode 解码一帧，未知字段忽略
func Decode(b []byte) (Frame, error) {
	var fr Frame
	bounds := 0
	err := fields(b, func(num protowire.Number, typ protowire.Type, v uint64, msg []byte) error {
		var err error
		switch num {
		case fieldKind:
			fr.Kind = FrameKind(v)
		case fieldName:
			fr.Name = string(msg)
		case fieldWall:
			var s [2]geometry.Vector
			s, err = decodeSegment(msg)
			fr.Walls = append(fr.Walls, s)
		case fieldTimingLine:
			var s [2]geometry.Vector
			s, err = decodeSegment(msg)
			fr.TimingLines = append(fr.TimingLines, s)
		case fieldZone:
			var z ZoneFrame
			z, err = decodeZone(msg)
			fr.Zones = append(fr.Zones, z)
		case fieldBounds:
			if bounds < len(fr.Bounds) {
				fr.Bounds[bounds] = math.Float64frombits(v)
				bounds++
			}
		case fieldStep:
			fr.Step = int32(v)
		case fieldT:
			fr.T = math.Float64frombits(v)
		case fieldAgent:
			var a entity.AgentView
			a, err = decodeAgent(msg)
			fr.Agents = append(fr.Agents, a)
		case fieldCounts:
			fr.Counts, err = decodeCounts(msg)
		case fieldArrivedStep:
			fr.Arrived = int(v)
		}
		return err
	})
	if err != nil {
		return Frame{}, err
	}
	if fr.Kind != KindGeometry && fr.Kind != KindSnapshot {
		return Frame{}, fmt.Errorf("%w: unknown kind %d", errMalformed, fr.Kind)
	}
	return fr, nil
}
