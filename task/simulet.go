package task

import (
	"flag"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：在每个模拟步开始时生成新行人并准备快照
// 参数：t-本步开始时刻
// 返回：本步生成人数
// 算法说明：
// 1. 生成：手动加入的行人与入口区域的伯努利生成
// 2. 快照：所有行人runtime复制到snapshot，构建邻居索引，随机礼仪抛硬币
// 说明：确保更新阶段只读取步开始时的一致快照
func (ctx *Context) prepare(t float64) int {
	spawned := ctx.pedestrianManager.Spawn(t)
	ctx.pedestrianManager.Prepare()
	return spawned
}

// update 更新阶段，每步执行一次
// 功能：以快照计算所有行人的受力，再统一积分
func (ctx *Context) update() {
	ctx.pedestrianManager.Update(ctx.clock.DT)
}

// maintain 维护阶段，每步执行一次
// 功能：到达与异常移除，时刻取本步结束时
func (ctx *Context) maintain() (arrived, discarded int) {
	return ctx.pedestrianManager.Maintain(ctx.clock.Next())
}

// step 执行一步完整的模拟
// 算法说明：
// 1. 准备阶段（生成、快照、相遇判定）
// 2. 更新阶段（受力、积分）
// 3. 维护阶段（到达、异常移除）
// 4. 推进时钟，按间隔输出心跳日志
// 5. 构建对外快照
func (ctx *Context) step() Snapshot {
	spawned := ctx.prepare(ctx.clock.T)
	log.Debugf("step %d: prepare complete", ctx.clock.InternalStep)
	ctx.update()
	log.Debugf("step %d: update complete", ctx.clock.InternalStep)
	arrived, discarded := ctx.maintain()
	ctx.clock.Tick()

	if *heartBeatInterval > 0 && ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		counts := ctx.pedestrianManager.Counts()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) active=%d spawned=%d arrived=%d discarded=%d blocked=%d",
			ctx.clock.InternalStep,
			hour, minute, second,
			counts.Active(), counts.Spawned, counts.Arrived, counts.Discarded, counts.Blocked,
		)
	}
	return ctx.buildSnapshot(spawned, arrived, discarded)
}

func (ctx *Context) buildSnapshot(spawned, arrived, discarded int) Snapshot {
	return Snapshot{
		Step:      ctx.clock.InternalStep,
		T:         ctx.clock.T,
		Agents:    ctx.pedestrianManager.Views(),
		Spawned:   spawned,
		Arrived:   arrived,
		Discarded: discarded,
		Counts:    ctx.pedestrianManager.Counts(),
		Totals:    ctx.recorder.Totals(),
	}
}
