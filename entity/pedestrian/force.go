package pedestrian

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
)

// Body 受力计算时其他行人的只读快照
type Body struct {
	ID       int32
	Position geometry.Vector
	Velocity geometry.Vector
	Heading  geometry.Vector // 朝向目标点的单位向量
}

// ForceInput 单个行人的受力计算输入
type ForceInput struct {
	Self         Body
	Target       geometry.Vector
	DesiredSpeed float64
	Etiquette    entity.Etiquette
	Encounters   map[int32]Side // 随机礼仪的相遇抛硬币结果
}

// GoalForce 目标吸引力
// 功能：使速度在弛豫时间内趋向期望速度
// 返回：(v0·e - v)/tau，已在目标点上时为零
func GoalForce(pos, vel, target geometry.Vector, desiredSpeed, tau float64) geometry.Vector {
	e := target.Sub(pos).Normalize()
	if e == (geometry.Vector{}) {
		return geometry.Vector{}
	}
	return e.Scale(desiredSpeed).Sub(vel).Scale(1 / tau)
}

// isHeadOn 判断other是否与self迎面相遇
// 算法说明：
// 1. 两者朝向夹角余弦小于head_on_cos（相向而行）
// 2. other位于self前方
// 3. other相对self行进方向的横向偏移小于passing_width
// 4. 距离在作用半径内
func isHeadOn(self, other Body, p config.Force) bool {
	if self.Heading.Dot(other.Heading) >= p.HeadOnCos {
		return false
	}
	d := other.Position.Sub(self.Position)
	if self.Heading.Dot(d) <= 0 {
		return false
	}
	if math.Abs(self.Heading.Cross(d)) >= p.PassingWidth {
		return false
	}
	return d.Len() < p.InteractionRadius
}

// etiquetteSide 迎面相遇时的避让方向
func etiquetteSide(etiquette entity.Etiquette, encounters map[int32]Side, other int32) Side {
	switch etiquette {
	case entity.StayLeft:
		return SideLeft
	case entity.StayRight:
		return SideRight
	case entity.RandomChoice:
		return encounters[other]
	default:
		return SideNone
	}
}

// AgentForce 其他行人对self的作用力
// 功能：指数衰减的排斥力，迎面相遇时叠加礼仪决定的侧向力
// 参数：side-迎面相遇时的避让方向，不相遇时传SideNone
// 返回：作用力，超出作用半径时为零
// 算法说明：
// 1. 排斥：A·exp((2r-d)/B)，方向由other指向self；两者重合时沿y轴分开
// 2. 侧向：Ae·exp((2r-d)/Be)，方向为self行进方向的左侧或右侧
func AgentForce(self, other Body, side Side, p config.Force) geometry.Vector {
	diff := self.Position.Sub(other.Position)
	d := diff.Len()
	if d >= p.InteractionRadius {
		return geometry.Vector{}
	}
	n := diff.Normalize()
	if d == 0 {
		// 重合时没有确定的方向，按ID大小沿y轴分到两侧
		n = geometry.Vector{Y: lo.Ternary(self.ID < other.ID, 1., -1.)}
	}
	f := n.Scale(p.AgentStrength * math.Exp((2*p.BodyRadius-d)/p.AgentRange))
	if side != SideNone {
		lateral := self.Heading.Left().Scale(float64(side))
		f = f.Add(lateral.Scale(p.EtiquetteStrength * math.Exp((2*p.BodyRadius-d)/p.EtiquetteRange)))
	}
	return f
}

// WallForce 墙对pos处行人的排斥力
// 返回：Aw·exp((r-d)/Bw)，方向为墙上最近点指向行人；超出作用半径时为零
func WallForce(pos geometry.Vector, wall environment.Wall, p config.Force) geometry.Vector {
	c := wall.Closest(pos)
	diff := pos.Sub(c)
	d := diff.Len()
	if d == 0 || d > p.WallRadius {
		return geometry.Vector{}
	}
	return diff.Scale(1 / d).Scale(p.WallStrength * math.Exp((p.BodyRadius-d)/p.WallRange))
}

// NetForce 合力
// 功能：纯函数，计算单个行人在当前快照下受到的合力
// 参数：in-行人自身输入，bodies-全体行人快照，neighbors-作用半径内邻居在bodies中的下标（升序），
// env-环境，p-力模型系数
// 返回：截断到max_force的合力
// 说明：邻居按下标顺序累加，浮点结果与遍历无关地确定
func NetForce(
	in ForceInput,
	bodies []Body,
	neighbors []int,
	env *environment.Environment,
	p config.Force,
) geometry.Vector {
	f := GoalForce(in.Self.Position, in.Self.Velocity, in.Target, in.DesiredSpeed, p.RelaxationTime)
	for _, j := range neighbors {
		other := bodies[j]
		if other.ID == in.Self.ID {
			continue
		}
		side := SideNone
		if isHeadOn(in.Self, other, p) {
			side = etiquetteSide(in.Etiquette, in.Encounters, other.ID)
		}
		f = f.Add(AgentForce(in.Self, other, side, p))
	}
	for _, w := range env.WallsWithin(in.Self.Position, p.WallRadius) {
		f = f.Add(WallForce(in.Self.Position, env.Walls[w], p))
	}
	return f.ClampLen(p.MaxForce)
}
