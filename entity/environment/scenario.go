package environment

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
)

const (
	CorridorLength = 25.0 // 走廊长度（米）
	CorridorWidth  = 6.0  // 走廊宽度（米）
)

// 内置场景
var builtins = map[string]func() (*Environment, error){
	"corridor":          Corridor,
	"corridor_vertical": CorridorVertical,
	"diagonal":          Diagonal,
	"crossroads":        Crossroads,
	"open":              Open,
}

// Builtin 按名称构造内置场景
func Builtin(name string) (*Environment, error) {
	f, ok := builtins[name]
	if !ok {
		return nil, config.NewConfigurationError("input.environment", "unknown builtin environment %q (available: %v)", name, BuiltinNames())
	}
	return f()
}

// BuiltinNames 所有内置场景名（已排序）
func BuiltinNames() []string {
	names := lo.Keys(builtins)
	sort.Strings(names)
	return names
}

// corridorParts 生成走廊的墙、流向和计时线，transform用于镜像或旋转
// 说明：正向从x≈1出发到x≈24，反向相反；计时线在x=3与x=22
func corridorParts(transform func(geometry.Vector) geometry.Vector) ([]Wall, []Flow, []TimingLine) {
	v := func(x, y float64) geometry.Vector {
		return transform(geometry.Vector{X: x, Y: y})
	}
	rect := func(minX, minY, maxX, maxY float64) Zone {
		return NewZone(v(minX, minY), v(maxX, minY), v(maxX, maxY), v(minX, maxY))
	}
	L, W := CorridorLength, CorridorWidth
	walls := []Wall{
		{A: v(0, 0), B: v(L, 0)},
		{A: v(0, W), B: v(L, W)},
		{A: v(0, 0), B: v(0, W)},
		{A: v(L, 0), B: v(L, W)},
	}
	flows := []Flow{
		{
			Direction: Forward,
			Entries:   []Zone{rect(0.5, 0.5, 1.5, W-0.5)},
			Targets:   []Zone{rect(L-1.5, 0.3, L-0.3, W-0.3)},
		},
		{
			Direction: Backward,
			Entries:   []Zone{rect(L-1.5, 0.5, L-0.5, W-0.5)},
			Targets:   []Zone{rect(0.3, 0.3, 1.5, W-0.3)},
		},
	}
	timing := []TimingLine{
		{A: v(3, 0), B: v(3, W)},
		{A: v(L-3, 0), B: v(L-3, W)},
	}
	return walls, flows, timing
}

// Corridor 25m×6m走廊，两个方向相向而行
func Corridor() (*Environment, error) {
	walls, flows, timing := corridorParts(func(p geometry.Vector) geometry.Vector { return p })
	return New("corridor", walls, flows, timing, nil)
}

// CorridorVertical 关于y=x镜像的走廊
func CorridorVertical() (*Environment, error) {
	walls, flows, timing := corridorParts(func(p geometry.Vector) geometry.Vector {
		return geometry.Vector{X: p.Y, Y: p.X}
	})
	return New("corridor_vertical", walls, flows, timing, nil)
}

// Diagonal 旋转45°的走廊，用于验证斜向墙体
func Diagonal() (*Environment, error) {
	c, s := math.Cos(math.Pi/4), math.Sin(math.Pi/4)
	walls, flows, timing := corridorParts(func(p geometry.Vector) geometry.Vector {
		return geometry.Vector{X: p.X*c - p.Y*s + CorridorWidth, Y: p.X*s + p.Y*c}
	})
	return New("diagonal", walls, flows, timing, nil)
}

// Crossroads 两条6m宽走廊十字交叉，四个流向（实验性）
func Crossroads() (*Environment, error) {
	w := func(x1, y1, x2, y2 float64) Wall {
		return Wall{A: geometry.Vector{X: x1, Y: y1}, B: geometry.Vector{X: x2, Y: y2}}
	}
	walls := []Wall{
		// 横向走廊
		w(-1, 12.5, 11.5, 12.5), w(19.5, 12.5, 32, 12.5),
		w(-1, 18.5, 11.5, 18.5), w(19.5, 18.5, 32, 18.5),
		w(-1, 12.5, -1, 18.5), w(32, 12.5, 32, 18.5),
		// 纵向走廊
		w(12.5, -1, 12.5, 11.5), w(12.5, 19.5, 12.5, 32),
		w(18.5, -1, 18.5, 11.5), w(18.5, 19.5, 18.5, 32),
		w(12.5, -1, 18.5, -1), w(12.5, 32, 18.5, 32),
		// 路口倒角
		w(12.5, 11.5, 11.5, 12.5), w(18.5, 11.5, 19.5, 12.5),
		w(19.5, 18.5, 18.5, 19.5), w(11.5, 18.5, 12.5, 19.5),
	}
	flows := []Flow{
		{Direction: Forward, Entries: []Zone{NewRect(0, 13, 1, 18)}, Targets: []Zone{NewRect(29.5, 13, 30.5, 18)}},
		{Direction: Backward, Entries: []Zone{NewRect(30, 13, 31, 18)}, Targets: []Zone{NewRect(0.5, 13, 1.5, 18)}},
		{Direction: 2, Entries: []Zone{NewRect(13, 0, 18, 1)}, Targets: []Zone{NewRect(13, 29.5, 18, 30.5)}},
		{Direction: 3, Entries: []Zone{NewRect(13, 30, 18, 31)}, Targets: []Zone{NewRect(13, 0.5, 18, 1.5)}},
	}
	timing := []TimingLine{
		{A: geometry.Vector{X: 3, Y: 12.5}, B: geometry.Vector{X: 3, Y: 18.5}},
		{A: geometry.Vector{X: 28, Y: 12.5}, B: geometry.Vector{X: 28, Y: 18.5}},
	}
	return New("crossroads", walls, flows, timing, nil)
}

// Open 20m×10m开阔场地，两个流向在中线上迎面相遇，用于对向避让实验
func Open() (*Environment, error) {
	walls := []Wall{
		{A: geometry.Vector{X: 0, Y: 0}, B: geometry.Vector{X: 20, Y: 0}},
		{A: geometry.Vector{X: 0, Y: 10}, B: geometry.Vector{X: 20, Y: 10}},
		{A: geometry.Vector{X: 0, Y: 0}, B: geometry.Vector{X: 0, Y: 10}},
		{A: geometry.Vector{X: 20, Y: 0}, B: geometry.Vector{X: 20, Y: 10}},
	}
	flows := []Flow{
		{Direction: Forward, Entries: []Zone{NewRect(1, 3, 2, 7)}, Targets: []Zone{NewRect(17, 1, 19, 9)}},
		{Direction: Backward, Entries: []Zone{NewRect(18, 3, 19, 7)}, Targets: []Zone{NewRect(1, 1, 3, 9)}},
	}
	return New("open", walls, flows, nil, nil)
}
