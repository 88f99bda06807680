package config

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// ConfigurationError 配置错误
// 功能：描述环境或参数不合法导致模拟无法启动的错误
// 说明：初始化阶段致命，模拟不会开始；调用方可用errors.As识别
type ConfigurationError struct {
	Object string // 出错的对象，例如"force.max_force"、"flow 0 entry 1"
	Reason string // 原因
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Object, e.Reason)
}

// NewConfigurationError 构造配置错误
func NewConfigurationError(object, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Object: object, Reason: fmt.Sprintf(format, args...)}
}

// Default 返回带有默认值的配置
// 说明：YAML反序列化到该对象上时，未出现的字段保留默认值
// 这些系数只是可用的起点，需要针对具体数据集重新标定
func Default() Config {
	return Config{
		Input: Input{Environment: "corridor"},
		Control: Control{
			Step: ControlStep{Start: 0, Total: 1000, Interval: 0.1},
		},
		Population: Population{
			ArrivalRate:  1.0,
			SpawnRetries: 8,
			Speed:        SpeedDistribution{Mean: 1.3, Std: 0.2, Min: 0.5},
		},
		Etiquette: Etiquette{Mode: EtiquetteStayLeft},
		Force: Force{
			RelaxationTime:    0.5,
			AgentStrength:     3.0,
			AgentRange:        0.3,
			BodyRadius:        0.3,
			InteractionRadius: 3.0,
			EtiquetteStrength: 1.5,
			EtiquetteRange:    1.5,
			HeadOnCos:         -0.5,
			PassingWidth:      1.2,
			WallStrength:      5.0,
			WallRange:         0.2,
			WallRadius:        1.0,
			MaxForce:          8.0,
		},
		Motion: Motion{Mass: 1, MaxSpeed: 2.0, Noise: 0.05},
	}
}

// Validate 检查配置合法性
// 返回：第一个发现的*ConfigurationError，合法时返回nil
func (c Config) Validate() error {
	positive := []lo.Tuple2[string, float64]{
		{A: "control.step.interval", B: c.Control.Step.Interval},
		{A: "population.speed.mean", B: c.Population.Speed.Mean},
		{A: "force.relaxation_time", B: c.Force.RelaxationTime},
		{A: "force.agent_range", B: c.Force.AgentRange},
		{A: "force.body_radius", B: c.Force.BodyRadius},
		{A: "force.interaction_radius", B: c.Force.InteractionRadius},
		{A: "force.etiquette_range", B: c.Force.EtiquetteRange},
		{A: "force.passing_width", B: c.Force.PassingWidth},
		{A: "force.wall_range", B: c.Force.WallRange},
		{A: "force.wall_radius", B: c.Force.WallRadius},
		{A: "force.max_force", B: c.Force.MaxForce},
		{A: "motion.mass", B: c.Motion.Mass},
		{A: "motion.max_speed", B: c.Motion.MaxSpeed},
	}
	for _, p := range positive {
		if !(p.B > 0) || math.IsInf(p.B, 0) {
			return NewConfigurationError(p.A, "must be a positive finite number, got %v", p.B)
		}
	}
	nonNegative := []lo.Tuple2[string, float64]{
		{A: "population.arrival_rate", B: c.Population.ArrivalRate},
		{A: "population.speed.std", B: c.Population.Speed.Std},
		{A: "population.speed.min", B: c.Population.Speed.Min},
		{A: "force.agent_strength", B: c.Force.AgentStrength},
		{A: "force.etiquette_strength", B: c.Force.EtiquetteStrength},
		{A: "force.wall_strength", B: c.Force.WallStrength},
		{A: "motion.noise", B: c.Motion.Noise},
	}
	for _, p := range nonNegative {
		if !(p.B >= 0) || math.IsInf(p.B, 0) {
			return NewConfigurationError(p.A, "must be a non-negative finite number, got %v", p.B)
		}
	}
	if c.Control.Step.Total < 0 {
		return NewConfigurationError("control.step.total", "must not be negative, got %d", c.Control.Step.Total)
	}
	if c.Population.MaxAgents < 0 {
		return NewConfigurationError("population.max_agents", "must not be negative, got %d", c.Population.MaxAgents)
	}
	if c.Population.SpawnRetries < 0 {
		return NewConfigurationError("population.spawn_retries", "must not be negative, got %d", c.Population.SpawnRetries)
	}
	if c.Force.HeadOnCos < -1 || c.Force.HeadOnCos > 1 {
		return NewConfigurationError("force.head_on_cos", "must be within [-1, 1], got %v", c.Force.HeadOnCos)
	}
	if c.Population.Speed.Min > c.Motion.MaxSpeed {
		return NewConfigurationError("population.speed.min", "exceeds motion.max_speed %v", c.Motion.MaxSpeed)
	}
	if c.Output.Trim < 0 {
		return NewConfigurationError("output.trim", "must not be negative, got %d", c.Output.Trim)
	}
	if c.Input.Environment == "" && c.Input.File == "" {
		return NewConfigurationError("input", "either environment or file must be set")
	}
	if c.Etiquette.Mix != nil {
		w := c.Etiquette.Mix.Weights()
		if lo.SomeBy(w, func(x float64) bool { return x < 0 || math.IsNaN(x) || math.IsInf(x, 0) }) || lo.Sum(w) <= 0 {
			return NewConfigurationError("etiquette.mix", "weights must be finite and non-negative with a positive sum, got %v", w)
		}
	} else if !lo.Contains([]string{EtiquetteStayLeft, EtiquetteRandomChoice, EtiquetteStayRight}, c.Etiquette.Mode) {
		return NewConfigurationError("etiquette.mode", "unknown mode %q", c.Etiquette.Mode)
	}
	return nil
}

// RuntimeConfig 运行时配置
// 功能：存储校验后的配置以及由配置推导出的每步参数
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置

	SpawnProbability float64 // 每个入口区域每步生成一人的概率
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：校验配置并推导每步参数
// 参数：config-原始配置对象
// 返回：运行时配置指针；配置不合法时返回*ConfigurationError
// 算法说明：
// 1. 校验配置
// 2. 生成概率 = 到达率 × 步长，截断到[0, 1]（每步每个入口一次伯努利试验）
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control
	rc.SpawnProbability = lo.Clamp(config.Population.ArrivalRate*config.Control.Step.Interval, 0, 1)

	return rc, nil
}
