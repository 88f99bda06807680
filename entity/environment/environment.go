package environment

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/randengine"
)

const (
	maxSampleTries = 64 // 多边形内拒绝采样的最大尝试次数
)

// Direction 行进方向（流向编号）
// 说明：走廊只有Forward、Backward两个方向，十字路口等场景使用更多编号
type Direction int32

const (
	Forward  Direction = 0 // 沿走廊正向
	Backward Direction = 1 // 沿走廊反向
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("flow-%d", int32(d))
	}
}

// Wall 不可穿越的线段障碍
type Wall struct {
	A geometry.Vector
	B geometry.Vector
}

// Closest 墙上距p最近的点
func (w Wall) Closest(p geometry.Vector) geometry.Vector {
	return geometry.ClosestOnSegment(w.A, w.B, p)
}

// Distance p到墙的距离
func (w Wall) Distance(p geometry.Vector) float64 {
	return geometry.Distance(w.Closest(p), p)
}

// Crosses 线段pq是否穿过墙
func (w Wall) Crosses(p, q geometry.Vector) bool {
	return geometry.SegmentsIntersect(p, q, w.A, w.B)
}

// TimingLine 计时线，行人穿过时记录时刻
type TimingLine struct {
	A geometry.Vector
	B geometry.Vector
}

// Crosses 线段pq是否穿过计时线
func (l TimingLine) Crosses(p, q geometry.Vector) bool {
	return geometry.SegmentsIntersect(p, q, l.A, l.B)
}

// Zone 多边形区域（入口或目标）
type Zone struct {
	ring     orb.Ring
	bound    orb.Bound
	area     float64
	centroid geometry.Vector
}

// NewZone 由多边形顶点构造区域
// 说明：顶点按顺序给出，自动闭合；面积为0的区域在Validate时报错
func NewZone(points ...geometry.Vector) Zone {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, p.Point())
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	z := Zone{ring: ring}
	if len(ring) > 0 {
		z.bound = ring.Bound()
		c, a := planar.CentroidArea(ring)
		z.area = math.Abs(a)
		z.centroid = geometry.FromPoint(c)
	}
	return z
}

// NewRect 构造轴对齐矩形区域
func NewRect(minX, minY, maxX, maxY float64) Zone {
	return NewZone(
		geometry.Vector{X: minX, Y: minY},
		geometry.Vector{X: maxX, Y: minY},
		geometry.Vector{X: maxX, Y: maxY},
		geometry.Vector{X: minX, Y: maxY},
	)
}

// Contains 点是否在区域内（含边界）
func (z Zone) Contains(p geometry.Vector) bool {
	if len(z.ring) < 4 {
		return false
	}
	return planar.RingContains(z.ring, p.Point())
}

func (z Zone) Area() float64 {
	return z.area
}

func (z Zone) Centroid() geometry.Vector {
	return z.centroid
}

func (z Zone) Bound() orb.Bound {
	return z.bound
}

// Vertices 区域顶点（不含闭合点）
func (z Zone) Vertices() []geometry.Vector {
	if len(z.ring) == 0 {
		return nil
	}
	vs := make([]geometry.Vector, 0, len(z.ring)-1)
	for _, p := range z.ring[:len(z.ring)-1] {
		vs = append(vs, geometry.FromPoint(p))
	}
	return vs
}

// edges 区域的所有边
func (z Zone) edges() [][2]geometry.Vector {
	es := make([][2]geometry.Vector, 0, len(z.ring))
	for i := 0; i+1 < len(z.ring); i++ {
		es = append(es, [2]geometry.Vector{geometry.FromPoint(z.ring[i]), geometry.FromPoint(z.ring[i+1])})
	}
	return es
}

// Sample 在区域内均匀采样一个点
// 功能：在外接矩形内拒绝采样，直到落入多边形
// 参数：e-随机数引擎，每次尝试消耗两个随机数
// 返回：采样点；多次失败后返回区域形心
func (z Zone) Sample(e *randengine.Engine) geometry.Vector {
	for range maxSampleTries {
		p := geometry.Vector{
			X: e.Uniform(z.bound.Min.X(), z.bound.Max.X()),
			Y: e.Uniform(z.bound.Min.Y(), z.bound.Max.Y()),
		}
		if z.Contains(p) {
			return p
		}
	}
	return z.centroid
}

// Flow 一个流向：入口区域、目标区域
type Flow struct {
	Direction Direction
	Entries   []Zone
	Targets   []Zone
}

// Environment 模拟环境
// 功能：不可变的可行走区域几何描述，包括墙、流向（入口与目标区域）、计时线、边界
// 说明：构造后只读，在同一次模拟的所有步之间共享
type Environment struct {
	Name        string
	Walls       []Wall
	Flows       []Flow
	TimingLines []TimingLine
	Bounds      orb.Bound
}

// New 构造并校验环境
// 参数：bounds-环境边界，为nil时取所有墙的外接矩形
// 返回：校验通过的环境；不满足不变量时返回*config.ConfigurationError
func New(name string, walls []Wall, flows []Flow, timingLines []TimingLine, bounds *orb.Bound) (*Environment, error) {
	e := &Environment{
		Name:        name,
		Walls:       walls,
		Flows:       flows,
		TimingLines: timingLines,
	}
	if bounds != nil {
		e.Bounds = *bounds
	} else {
		e.Bounds = e.wallBound()
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("environment %q: %w", name, err)
	}
	return e, nil
}

func (e *Environment) wallBound() orb.Bound {
	var b orb.Bound
	for i, w := range e.Walls {
		wb := orb.LineString{w.A.Point(), w.B.Point()}.Bound()
		if i == 0 {
			b = wb
		} else {
			b = b.Union(wb)
		}
	}
	return b
}

// Validate 检查环境不变量
// 算法说明：
// 1. 边界面积为正，至少有一个流向，每个流向至少一个入口和一个目标
// 2. 所有区域面积为正，且完全在边界内
// 3. 入口区域不能与任何墙重合（墙与区域的边相交或端点落在区域内）
// 4. 每个入口区域至少能直达一个目标区域，每个目标区域至少能被一个入口直达
func (e *Environment) Validate() error {
	if !(e.Bounds.Max.X() > e.Bounds.Min.X() && e.Bounds.Max.Y() > e.Bounds.Min.Y()) {
		return config.NewConfigurationError("bounds", "bounds must have a positive area, got %v", e.Bounds)
	}
	if len(e.Flows) == 0 {
		return config.NewConfigurationError("flows", "at least one flow is required")
	}
	seen := make(map[Direction]bool)
	for fi, f := range e.Flows {
		if seen[f.Direction] {
			return config.NewConfigurationError(fmt.Sprintf("flow %d", fi), "duplicated direction %v", f.Direction)
		}
		seen[f.Direction] = true
		if len(f.Entries) == 0 {
			return config.NewConfigurationError(fmt.Sprintf("flow %d", fi), "no entry zone")
		}
		if len(f.Targets) == 0 {
			return config.NewConfigurationError(fmt.Sprintf("flow %d", fi), "no target zone")
		}
		for zi, z := range f.Entries {
			object := fmt.Sprintf("flow %d entry %d", fi, zi)
			if err := e.checkZone(object, z); err != nil {
				return err
			}
			if e.touchesWall(z) {
				return config.NewConfigurationError(object, "entry zone coincides with a wall")
			}
		}
		for zi, z := range f.Targets {
			if err := e.checkZone(fmt.Sprintf("flow %d target %d", fi, zi), z); err != nil {
				return err
			}
		}
		reached := make([]bool, len(f.Targets))
		for zi, entry := range f.Entries {
			ok := false
			for ti, target := range f.Targets {
				if e.Reachable(entry.Centroid(), target.Centroid()) {
					ok = true
					reached[ti] = true
				}
			}
			if !ok {
				return config.NewConfigurationError(fmt.Sprintf("flow %d entry %d", fi, zi), "no reachable target zone")
			}
		}
		for ti, ok := range reached {
			if !ok {
				return config.NewConfigurationError(fmt.Sprintf("flow %d target %d", fi, ti), "unreachable target zone")
			}
		}
	}
	return nil
}

func (e *Environment) checkZone(object string, z Zone) error {
	if len(z.ring) < 4 {
		return config.NewConfigurationError(object, "zone needs at least 3 vertices")
	}
	if !(z.area > 0) {
		return config.NewConfigurationError(object, "zone has zero area")
	}
	// 边界是轴对齐矩形，外接矩形在边界内即所有顶点在边界内
	if !e.Bounds.Contains(z.bound.Min) || !e.Bounds.Contains(z.bound.Max) {
		return config.NewConfigurationError(object, "zone %v extends beyond the environment bounds %v", z.bound, e.Bounds)
	}
	return nil
}

func (e *Environment) touchesWall(z Zone) bool {
	for _, w := range e.Walls {
		if z.Contains(w.A) || z.Contains(w.B) {
			return true
		}
		for _, edge := range z.edges() {
			if w.Crosses(edge[0], edge[1]) {
				return true
			}
		}
	}
	return false
}

// Reachable 从a能否不穿墙直线到达b，且b在边界内
func (e *Environment) Reachable(a, b geometry.Vector) bool {
	return e.InBounds(b) && !e.Blocked(a, b)
}

// Blocked 线段pq是否穿过任何墙
func (e *Environment) Blocked(p, q geometry.Vector) bool {
	for _, w := range e.Walls {
		if w.Crosses(p, q) {
			return true
		}
	}
	return false
}

// InBounds 点是否在环境边界内
func (e *Environment) InBounds(p geometry.Vector) bool {
	return e.Bounds.Contains(p.Point())
}

// Flow 按方向查找流向
func (e *Environment) Flow(d Direction) (*Flow, bool) {
	for i := range e.Flows {
		if e.Flows[i].Direction == d {
			return &e.Flows[i], true
		}
	}
	return nil, false
}

// WallsWithin 距p不超过radius的墙的下标（按墙的顺序）
func (e *Environment) WallsWithin(p geometry.Vector, radius float64) []int {
	var res []int
	for i, w := range e.Walls {
		if w.Distance(p) <= radius {
			res = append(res, i)
		}
	}
	return res
}

// Size 边界宽和高
func (e *Environment) Size() (float64, float64) {
	return e.Bounds.Max.X() - e.Bounds.Min.X(), e.Bounds.Max.Y() - e.Bounds.Min.Y()
}
