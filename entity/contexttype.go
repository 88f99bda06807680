package entity

import (
	"github.com/tsinghua-fib-lab/pedsim-etiquette/clock"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/randengine"
)

// ITaskContext 模拟任务上下文，由task.Context实现
type ITaskContext interface {
	Clock() *clock.Clock
	Environment() *environment.Environment
	Engine() *randengine.Engine // 本次模拟唯一的随机数引擎
	RuntimeConfig() *config.RuntimeConfig
}
