// 二维向量，用于表示位置、速度、力，单位为米、米/秒、米/秒²
package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// Vector 二维向量
type Vector struct {
	X float64
	Y float64
}

// FromPoint 由orb.Point构造向量
func FromPoint(p orb.Point) Vector {
	return Vector{X: p.X(), Y: p.Y()}
}

// Point 转换为orb.Point，供environment中的几何计算使用
func (v Vector) Point() orb.Point {
	return orb.Point{v.X, v.Y}
}

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vector) Scale(k float64) Vector {
	return Vector{X: v.X * k, Y: v.Y * k}
}

// Dot 点积
func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Cross 二维叉积（z分量），o在v左侧时为正
func (v Vector) Cross(o Vector) float64 {
	return v.X*o.Y - v.Y*o.X
}

// Len 向量长度
func (v Vector) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalize 单位化
// 功能：返回同方向的单位向量
// 返回：单位向量，零向量返回零向量
func (v Vector) Normalize() Vector {
	l := v.Len()
	if l == 0 {
		return Vector{}
	}
	return Vector{X: v.X / l, Y: v.Y / l}
}

// Left 逆时针旋转90°（y轴向上时为行进方向的左侧）
func (v Vector) Left() Vector {
	return Vector{X: -v.Y, Y: v.X}
}

// Right 顺时针旋转90°
func (v Vector) Right() Vector {
	return Vector{X: v.Y, Y: -v.X}
}

// ClampLen 限制向量长度不超过max
// 功能：长度超过max时等比例缩放到max，否则原样返回
func (v Vector) ClampLen(max float64) Vector {
	l := v.Len()
	if l <= max || l == 0 {
		return v
	}
	return v.Scale(max / l)
}

// IsFinite 两个分量均为有限值
func (v Vector) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// Distance 两点距离
func Distance(a, b Vector) float64 {
	return b.Sub(a).Len()
}

// ClosestOnSegment 线段ab上距p最近的点
// 功能：将p投影到线段ab上并截断到端点
// 参数：a,b-线段端点，p-查询点
// 返回：最近点
func ClosestOnSegment(a, b, p Vector) Vector {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return a
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return a.Add(ab.Scale(t))
}

// SegmentsIntersect 判断线段p1p2与线段q1q2是否相交（含端点接触）
// 算法说明：
// 1. 用叉积判断两条线段是否互相跨立
// 2. 共线时检查投影区间是否重叠
func SegmentsIntersect(p1, p2, q1, q2 Vector) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(q1, q2, p1) {
		return true
	}
	if d2 == 0 && onSegment(q1, q2, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, q2) {
		return true
	}
	return false
}

func orientation(a, b, c Vector) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// onSegment c与ab共线时，c是否落在ab的包围盒内
func onSegment(a, b, c Vector) bool {
	return math.Min(a.X, b.X) <= c.X && c.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= c.Y && c.Y <= math.Max(a.Y, b.Y)
}
