package pedestrian

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/stats"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/container"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
)

// Manager 行人管理器
// 功能：负责行人的生成、受力计算与积分、到达与异常移除
// 说明：在场行人按ID升序扁平存储，所有遍历和随机抽样按ID顺序进行，固定种子可完全复现
type Manager struct {
	ctx       entity.ITaskContext
	collector stats.Collector

	agents   *container.IncrementalArray[*Agent]
	inserted []*Agent // 手动加入的行人，下一次生成阶段加入
	nextID   int32

	etiquette entity.Etiquette                // 未设置比例时全体使用的礼仪
	spawned   map[environment.Direction]int32 // 每个流向累计生成人数

	counts entity.PopulationCounts

	// 每步准备阶段由快照构建
	bodies    []Body
	neighbors [][]int
	grid      *grid
}

// NewManager 创建行人管理器
// 参数：ctx-任务上下文，collector-到达与异常移除事件的接收者
func NewManager(ctx entity.ITaskContext, collector stats.Collector) *Manager {
	rc := ctx.RuntimeConfig()
	etiquette, err := entity.ParseEtiquette(rc.All.Etiquette.Mode)
	if err != nil && rc.All.Etiquette.Mix == nil {
		log.Panicf("pedestrian: %v", err)
	}
	return &Manager{
		ctx:       ctx,
		collector: collector,
		agents:    container.NewIncrementalArray[*Agent](),
		inserted:  make([]*Agent, 0),
		etiquette: etiquette,
		spawned:   make(map[environment.Direction]int32),
		grid:      newGrid(rc.All.Force.InteractionRadius),
	}
}

// Add 手动加入一个行人
// 功能：校验参数并分配ID，行人在下一次生成阶段加入并计入生成人数
// 返回：新行人的ID；流向、目标区域或位置不合法时返回错误
func (m *Manager) Add(spec AgentSpec) (int32, error) {
	env := m.ctx.Environment()
	flow, ok := env.Flow(spec.Direction)
	if !ok {
		return 0, fmt.Errorf("no flow with direction %v", spec.Direction)
	}
	if spec.TargetZone < 0 || spec.TargetZone >= len(flow.Targets) {
		return 0, fmt.Errorf("target zone %d out of range [0, %d)", spec.TargetZone, len(flow.Targets))
	}
	zone := flow.Targets[spec.TargetZone]
	if !zone.Contains(spec.Target) {
		return 0, fmt.Errorf("target %v is not inside target zone %d", spec.Target, spec.TargetZone)
	}
	if !spec.Position.IsFinite() || !spec.Velocity.IsFinite() {
		return 0, fmt.Errorf("non-finite state position=%v velocity=%v", spec.Position, spec.Velocity)
	}
	if !env.InBounds(spec.Position) {
		return 0, fmt.Errorf("position %v is out of bounds", spec.Position)
	}
	if !(spec.DesiredSpeed > 0) {
		return 0, fmt.Errorf("desired speed must be positive, got %v", spec.DesiredSpeed)
	}
	a := newAgent(m.nextID, spec, zone, len(env.TimingLines))
	m.nextID++
	m.inserted = append(m.inserted, a)
	return a.id, nil
}

// overlaps 位置是否与在场或本步新生成的行人重叠
func (m *Manager) overlaps(p geometry.Vector, pending []*Agent) bool {
	minDist := 2 * m.ctx.RuntimeConfig().All.Force.BodyRadius
	near := func(a *Agent) bool {
		return geometry.Distance(a.runtime.Position, p) < minDist
	}
	return lo.SomeBy(m.agents.Data(), near) || lo.SomeBy(pending, near)
}

// sampleSpeed 期望速度：mean + clamp(std·N(0,1), -2std, 2std)，不低于min
func (m *Manager) sampleSpeed() float64 {
	s := m.ctx.RuntimeConfig().All.Population.Speed
	v := s.Mean + s.Std*m.ctx.Engine().BoundedNorm(2)
	return max(v, s.Min)
}

func (m *Manager) sampleEtiquette() entity.Etiquette {
	mix := m.ctx.RuntimeConfig().All.Etiquette.Mix
	if mix == nil {
		return m.etiquette
	}
	return entity.Etiquettes[m.ctx.Engine().DiscreteDistribution(mix.Weights())]
}

// Spawn 生成阶段
// 功能：加入手动放置的行人，并在每个入口区域进行一次伯努利试验生成新行人
// 参数：t-本步开始时刻，作为生成时刻
// 返回：本步生成人数
// 算法说明（随机数消耗顺序固定）：
// 1. 按流向顺序、入口顺序：伯努利试验，概率为arrival_rate·dt
// 2. 成功时：采样出生位置（与他人重叠则重试，全部失败记为拥堵放弃）、
// 目标区域下标、目标点、期望速度、礼仪（仅设置比例时）
// 3. 流向设置了人数上限且已达到时跳过该流向，不消耗随机数
func (m *Manager) Spawn(t float64) int {
	rc := m.ctx.RuntimeConfig()
	env := m.ctx.Environment()
	engine := m.ctx.Engine()
	pop := rc.All.Population

	pending := make([]*Agent, 0)
	for _, a := range m.inserted {
		a.spawnTime = t
		m.spawned[a.direction]++
		pending = append(pending, a)
	}
	m.inserted = []*Agent{}

	for fi := range env.Flows {
		flow := &env.Flows[fi]
		for _, entry := range flow.Entries {
			if pop.MaxAgents > 0 && m.spawned[flow.Direction] >= pop.MaxAgents {
				break
			}
			if !engine.PTrue(rc.SpawnProbability) {
				continue
			}
			pos, ok := geometry.Vector{}, false
			for range pop.SpawnRetries + 1 {
				pos = entry.Sample(engine)
				if !m.overlaps(pos, pending) {
					ok = true
					break
				}
			}
			if !ok {
				m.counts.Blocked++
				log.Debugf("spawn blocked at flow %v: entry zone is crowded", flow.Direction)
				continue
			}
			zi := engine.Intn(len(flow.Targets))
			spec := AgentSpec{
				Direction:  flow.Direction,
				Position:   pos,
				TargetZone: zi,
				Target:     flow.Targets[zi].Sample(engine),
			}
			spec.DesiredSpeed = m.sampleSpeed()
			spec.Etiquette = m.sampleEtiquette()
			a := newAgent(m.nextID, spec, flow.Targets[zi], len(env.TimingLines))
			a.spawnTime = t
			m.nextID++
			m.spawned[flow.Direction]++
			pending = append(pending, a)
		}
	}
	for _, a := range pending {
		m.agents.Add(a)
		log.Debugf("spawn pedestrian %d (%v, %v) at %v", a.id, a.direction, a.etiquette, a.runtime.Position)
	}
	m.counts.Spawned += int64(len(pending))
	return len(pending)
}

// Prepare 准备阶段
// 功能：应用增删、更新快照、构建邻居索引、为随机礼仪的新相遇抛硬币
// 算法说明：
// 1. 容器增量操作生效，所有行人runtime复制到snapshot
// 2. 以快照位置构建网格，查询每个行人作用半径内的邻居
// 3. 随机礼仪的行人按ID顺序，对每个新出现的迎面邻居按ID顺序抛一次硬币；
// 不再迎面的邻居的记录删除，下次相遇重新抛
func (m *Manager) Prepare() {
	p := m.ctx.RuntimeConfig().All.Force
	engine := m.ctx.Engine()

	m.agents.Prepare()
	data := m.agents.Data()
	for _, a := range data {
		a.snapshot = a.runtime
	}
	m.bodies = lo.Map(data, func(a *Agent, _ int) Body { return a.body() })
	m.grid.build(m.bodies)
	m.neighbors = m.neighbors[:0]
	for i, b := range m.bodies {
		m.neighbors = append(m.neighbors, m.grid.query(b.Position, p.InteractionRadius, i))
	}

	for i, a := range data {
		if a.etiquette != entity.RandomChoice {
			continue
		}
		current := make(map[int32]bool)
		for _, j := range m.neighbors[i] {
			other := m.bodies[j]
			if !isHeadOn(m.bodies[i], other, p) {
				continue
			}
			current[other.ID] = true
			// 双方各自抛硬币，约一半的相遇两人会躲向同一侧
			if _, ok := a.encounters[other.ID]; !ok {
				a.encounters[other.ID] = lo.Ternary(engine.PTrue(.5), SideLeft, SideRight)
			}
		}
		for id := range a.encounters {
			if !current[id] {
				delete(a.encounters, id)
			}
		}
	}
}

// Update 更新阶段
// 功能：先以快照计算全部行人的合力，再逐个积分写回runtime
// 参数：dt-步长
// 说明：积分时按ID顺序为每个行人抽取扰动（先x后y）
func (m *Manager) Update(dt float64) {
	rc := m.ctx.RuntimeConfig()
	env := m.ctx.Environment()
	engine := m.ctx.Engine()
	data := m.agents.Data()
	tEnd := m.ctx.Clock().T + dt

	forces := make([]geometry.Vector, len(data))
	for i, a := range data {
		forces[i] = NetForce(ForceInput{
			Self:         m.bodies[i],
			Target:       a.target,
			DesiredSpeed: a.desiredSpeed,
			Etiquette:    a.etiquette,
			Encounters:   a.encounters,
		}, m.bodies, m.neighbors[i], env, rc.All.Force)
	}
	for i, a := range data {
		noise := drawNoise(engine, rc.All.Motion.Noise)
		res, ok := Integrate(
			a.snapshot.Position, a.snapshot.Velocity, forces[i], noise,
			dt, rc.All.Motion, rc.All.Force.BodyRadius, env,
		)
		if !ok {
			a.anomaly = true
			continue
		}
		a.recordCrossings(env.TimingLines, a.runtime.Position, res.Position, tEnd)
		a.runtime.Position = res.Position
		a.runtime.Velocity = res.Velocity
	}
}

// Maintain 维护阶段
// 功能：处理到达与异常移除，并从在场集合中删除
// 参数：t-本步结束时刻
// 返回：本步到达人数、异常移除人数
// 算法说明：按ID顺序检查每个行人
// 1. 积分结果非有限值：异常移除（non_finite）
// 2. 位于目标区域内：到达，记录行程时间
// 3. 离开环境边界：异常移除（out_of_bounds）
func (m *Manager) Maintain(t float64) (arrived, discarded int) {
	env := m.ctx.Environment()
	for _, a := range m.agents.Data() {
		pos := a.runtime.Position
		switch {
		case a.anomaly || !pos.IsFinite() || !a.runtime.Velocity.IsFinite():
			m.discard(a, entity.DiscardNonFinite, t)
			discarded++
		case a.targetZone.Contains(pos):
			m.arrive(a, t)
			arrived++
		case !env.InBounds(pos):
			m.discard(a, entity.DiscardOutOfBounds, t)
			discarded++
		}
	}
	// 删除在本阶段生效，下一步开始前的快照只包含在场行人
	m.agents.Prepare()
	return
}

func (m *Manager) arrive(a *Agent, t float64) {
	a.runtime.Status = entity.StatusArrived
	ev := stats.ArrivalEvent{
		ID:          a.id,
		Direction:   a.direction,
		Etiquette:   a.etiquette,
		SpawnTime:   a.spawnTime,
		ArrivalTime: t,
		TravelTime:  t - a.spawnTime,
	}
	ev.SectionTime, ev.HasSection = a.sectionTime()
	m.collector.RecordArrival(ev)
	m.agents.Remove(a)
	m.counts.Arrived++
	log.Debugf("pedestrian %d arrived after %.1fs", a.id, ev.TravelTime)
}

func (m *Manager) discard(a *Agent, reason entity.DiscardReason, t float64) {
	a.runtime.Status = entity.StatusRemoved
	m.collector.RecordDiscard(stats.DiscardEvent{
		ID:        a.id,
		Direction: a.direction,
		Etiquette: a.etiquette,
		Reason:    reason,
		Time:      t,
	})
	m.agents.Remove(a)
	m.counts.Discarded++
	log.Warnf("pedestrian %d discarded at t=%.1f: %v (position=%v)", a.id, t, reason, a.runtime.Position)
}

// Len 在场人数
func (m *Manager) Len() int {
	return m.agents.Len()
}

// Views 在场行人的只读视图（按ID升序）
func (m *Manager) Views() []entity.AgentView {
	return lo.Map(m.agents.Data(), func(a *Agent, _ int) entity.AgentView { return a.view() })
}

func (m *Manager) Counts() entity.PopulationCounts {
	return m.counts
}
