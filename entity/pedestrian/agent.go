package pedestrian

import (
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/container"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
)

// Side 避让方向，相对于行人自身的行进方向
type Side int8

const (
	SideNone  Side = 0  // 未决定，不产生侧向力
	SideLeft  Side = 1  // 向左避让
	SideRight Side = -1 // 向右避让
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "none"
	}
}

// runtime 行人运行时数据
// 说明：该数据结构需要可以被直接复制，不应产生浅拷贝带来的副作用
type runtime struct {
	Status   entity.Status
	Position geometry.Vector
	Velocity geometry.Vector
}

// AgentSpec 手动放置行人的参数
// 功能：用于演示场景和测试，在下一步的生成阶段加入模拟并计入生成人数
type AgentSpec struct {
	Direction    environment.Direction
	Position     geometry.Vector
	Velocity     geometry.Vector
	TargetZone   int             // 流向中目标区域的下标
	Target       geometry.Vector // 目标点，必须位于目标区域内
	DesiredSpeed float64
	Etiquette    entity.Etiquette
}

// Agent 行人
// 功能：记录单个行人的静态属性和运行时状态
// 说明：只由Manager持有，外部通过AgentView获取只读副本
type Agent struct {
	container.IncrementalItemBase

	// 静态属性，生成后不再变化
	id           int32
	direction    environment.Direction
	etiquette    entity.Etiquette
	desiredSpeed float64          // 期望速度（米/秒）
	target       geometry.Vector  // 目标点
	targetZone   environment.Zone // 目标区域，进入即到达
	spawnTime    float64          // 生成时刻（秒）

	runtime  runtime // 运行时数据
	snapshot runtime // 快照，受力计算只读快照

	// 随机礼仪下每次迎面相遇抛硬币的结果，key为对方ID，相遇结束后删除
	encounters map[int32]Side

	// 计时线
	lineCrossed []bool    // 每条计时线是否已穿过
	lineTimes   []float64 // 按穿过顺序记录的时刻

	anomaly bool // 本步积分结果非有限值，等待维护阶段移除
}

func newAgent(id int32, spec AgentSpec, targetZone environment.Zone, nLines int) *Agent {
	return &Agent{
		id:           id,
		direction:    spec.Direction,
		etiquette:    spec.Etiquette,
		desiredSpeed: spec.DesiredSpeed,
		target:       spec.Target,
		targetZone:   targetZone,
		runtime: runtime{
			Status:   entity.StatusActive,
			Position: spec.Position,
			Velocity: spec.Velocity,
		},
		encounters:  make(map[int32]Side),
		lineCrossed: make([]bool, nLines),
		lineTimes:   make([]float64, 0, nLines),
	}
}

func (a *Agent) ID() int32 {
	return a.id
}

// Heading 朝向目标点的单位向量（基于快照位置）
func (a *Agent) Heading() geometry.Vector {
	return a.target.Sub(a.snapshot.Position).Normalize()
}

// body 受力计算使用的快照
func (a *Agent) body() Body {
	return Body{
		ID:       a.id,
		Position: a.snapshot.Position,
		Velocity: a.snapshot.Velocity,
		Heading:  a.Heading(),
	}
}

// recordCrossings 记录本步位移穿过的计时线
// 参数：from,to-本步起止位置，t-本步结束时刻
func (a *Agent) recordCrossings(lines []environment.TimingLine, from, to geometry.Vector, t float64) {
	for i, l := range lines {
		if a.lineCrossed[i] || !l.Crosses(from, to) {
			continue
		}
		a.lineCrossed[i] = true
		a.lineTimes = append(a.lineTimes, t)
	}
}

// sectionTime 最先穿过的两条计时线之间的用时
func (a *Agent) sectionTime() (float64, bool) {
	if len(a.lineTimes) < 2 {
		return 0, false
	}
	return a.lineTimes[1] - a.lineTimes[0], true
}

func (a *Agent) view() entity.AgentView {
	return entity.AgentView{
		ID:        a.id,
		Position:  a.runtime.Position,
		Velocity:  a.runtime.Velocity,
		Direction: a.direction,
		Etiquette: a.etiquette,
		Status:    a.runtime.Status,
	}
}
