package pedestrian

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/randengine"
)

// Motion 一步积分的结果
type Motion struct {
	Position geometry.Vector
	Velocity geometry.Vector
	Rejected bool // 位移穿墙被拒绝，停在原地且速度清零
	Nudged   bool // 离墙过近，被沿法向推出
}

// drawNoise 步态扰动
// 功能：每个分量为noise·clamp(0.5·N(0,1), -1, 1)，先x后y各消耗一个随机数
func drawNoise(e *randengine.Engine, noise float64) geometry.Vector {
	x := noise * lo.Clamp(.5*e.NormFloat64(), -1, 1)
	y := noise * lo.Clamp(.5*e.NormFloat64(), -1, 1)
	return geometry.Vector{X: x, Y: y}
}

// Integrate 半隐式欧拉积分
// 参数：pos,vel-当前状态，force-合力，noise-本步速度扰动，dt-步长，
// m-积分器配置，bodyRadius-身体半径，env-环境
// 返回：新状态；结果出现NaN/Inf时ok为false，调用方不应写回
// 算法说明：
// 1. v' = v + F/m·dt + noise，截断到max_speed
// 2. p' = p + v'·dt
// 3. 位移线段穿过任何墙：拒绝移动，速度清零
// 4. 与墙距离小于身体半径：沿法向推出到身体半径处（推出路径不能穿墙）
func Integrate(
	pos, vel, force, noise geometry.Vector,
	dt float64,
	m config.Motion,
	bodyRadius float64,
	env *environment.Environment,
) (res Motion, ok bool) {
	v := vel.Add(force.Scale(dt / m.Mass)).Add(noise).ClampLen(m.MaxSpeed)
	p := pos.Add(v.Scale(dt))
	if !v.IsFinite() || !p.IsFinite() {
		return Motion{}, false
	}
	if env.Blocked(pos, p) {
		p = pos
		v = geometry.Vector{}
		res.Rejected = true
	}
	for _, w := range env.WallsWithin(p, bodyRadius) {
		c := env.Walls[w].Closest(p)
		n := p.Sub(c).Normalize()
		if n == (geometry.Vector{}) {
			continue
		}
		out := c.Add(n.Scale(bodyRadius))
		if env.Blocked(p, out) {
			continue
		}
		p = out
		res.Nudged = true
	}
	res.Position = p
	res.Velocity = v
	return res, true
}
