package entity

import (
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
)

// AgentView 行人的只读视图，供渲染和统计使用
type AgentView struct {
	ID        int32
	Position  geometry.Vector
	Velocity  geometry.Vector
	Direction environment.Direction
	Etiquette Etiquette
	Status    Status
}

// PopulationCounts 行人数量累计
type PopulationCounts struct {
	Spawned   int64 // 累计生成
	Arrived   int64 // 累计到达
	Discarded int64 // 累计异常移除
	Blocked   int64 // 因入口拥堵放弃的生成
}

// Active 当前在场人数
func (c PopulationCounts) Active() int64 {
	return c.Spawned - c.Arrived - c.Discarded
}

// entity/pedestrian/manager.go的依赖倒置
type IPedestrianManager interface {
	Spawn(t float64) int                         // 生成阶段：返回本步生成人数
	Prepare()                                    // 准备阶段：snapshot更新、相遇判定
	Update(dt float64)                           // 更新阶段：受力计算与积分
	Maintain(t float64) (arrived, discarded int) // 维护阶段：到达与异常移除

	Len() int                 // 在场人数
	Views() []AgentView       // 在场行人的只读视图（按ID排序）
	Counts() PopulationCounts // 累计数量
}
