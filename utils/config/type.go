package config

// 礼仪模式名称
const (
	EtiquetteStayLeft     = "stay_left"     // 靠左避让
	EtiquetteRandomChoice = "random_choice" // 每次相遇随机选择避让方向
	EtiquetteStayRight    = "stay_right"    // 靠右避让
)

// Input 指定模拟环境来源的配置
// 功能：选择内置场景或从YAML描述文件加载环境
type Input struct {
	Environment string `yaml:"environment"`    // 内置场景名（corridor、corridor_vertical、diagonal、crossroads、open）
	File        string `yaml:"file,omitempty"` // 环境描述文件路径（优先级高于内置场景）
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Control 模拟器控制配置
type Control struct {
	Step ControlStep `yaml:"step"`
	Seed *uint64     `yaml:"seed,omitempty"` // 随机数种子，不设置则每次运行不同
}

// SpeedDistribution 期望步行速度分布（截断正态）
type SpeedDistribution struct {
	Mean float64 `yaml:"mean"` // 均值（米/秒）
	Std  float64 `yaml:"std"`  // 标准差（米/秒），截断在±2倍标准差
	Min  float64 `yaml:"min"`  // 下限（米/秒）
}

// Population 行人生成配置
type Population struct {
	ArrivalRate  float64           `yaml:"arrival_rate"`         // 每个入口区域每秒到达的期望人数
	MaxAgents    int32             `yaml:"max_agents,omitempty"` // 每个流向最多生成的人数，0表示不限
	SpawnRetries int               `yaml:"spawn_retries"`        // 出生位置与他人重叠时的重试次数
	Speed        SpeedDistribution `yaml:"speed"`
}

// EtiquetteMix 各礼仪模式的人数比例（无需归一化）
type EtiquetteMix struct {
	StayLeft     float64 `yaml:"stay_left"`
	RandomChoice float64 `yaml:"random_choice"`
	StayRight    float64 `yaml:"stay_right"`
}

// Weights 按stay_left、random_choice、stay_right顺序返回权重
func (m EtiquetteMix) Weights() []float64 {
	return []float64{m.StayLeft, m.RandomChoice, m.StayRight}
}

// Etiquette 礼仪配置，设置mix时按比例为每个行人抽取，否则全体使用mode
type Etiquette struct {
	Mode string        `yaml:"mode"`
	Mix  *EtiquetteMix `yaml:"mix,omitempty"`
}

// Force 社会力模型系数
type Force struct {
	RelaxationTime    float64 `yaml:"relaxation_time"`    // 目标吸引的弛豫时间（秒）
	AgentStrength     float64 `yaml:"agent_strength"`     // 行人间排斥强度（米/秒²）
	AgentRange        float64 `yaml:"agent_range"`        // 行人间排斥衰减长度（米）
	BodyRadius        float64 `yaml:"body_radius"`        // 行人身体半径（米）
	InteractionRadius float64 `yaml:"interaction_radius"` // 行人间作用半径（米）
	EtiquetteStrength float64 `yaml:"etiquette_strength"` // 对向避让侧向力强度（米/秒²）
	EtiquetteRange    float64 `yaml:"etiquette_range"`    // 对向避让侧向力衰减长度（米）
	HeadOnCos         float64 `yaml:"head_on_cos"`        // 朝向夹角余弦低于该值视为对向
	PassingWidth      float64 `yaml:"passing_width"`      // 横向偏移小于该值视为迎面相遇（米）
	WallStrength      float64 `yaml:"wall_strength"`      // 墙体排斥强度（米/秒²）
	WallRange         float64 `yaml:"wall_range"`         // 墙体排斥衰减长度（米）
	WallRadius        float64 `yaml:"wall_radius"`        // 墙体作用半径（米）
	MaxForce          float64 `yaml:"max_force"`          // 合力上限（米/秒²）
}

// Motion 积分器配置
type Motion struct {
	Mass     float64 `yaml:"mass"`      // 质量（归一化为1）
	MaxSpeed float64 `yaml:"max_speed"` // 最大步行速度（米/秒）
	Noise    float64 `yaml:"noise"`     // 每步速度扰动幅度（米/秒）
}

// Output 统计与输出配置
type Output struct {
	Trim   int    `yaml:"trim"`             // 统计时剔除最早和最晚到达的人数
	DB     string `yaml:"db,omitempty"`     // SQLite结果库路径，为空则不写库
	Listen string `yaml:"listen,omitempty"` // websocket快照推送地址，为空则不推送
}

// Config YAML配置文件的根结构
type Config struct {
	Input      Input      `yaml:"input"`      // 输入
	Control    Control    `yaml:"control"`    // 模拟过程控制
	Population Population `yaml:"population"` // 行人生成
	Etiquette  Etiquette  `yaml:"etiquette"`  // 礼仪
	Force      Force      `yaml:"force"`      // 社会力
	Motion     Motion     `yaml:"motion"`     // 运动积分
	Output     Output     `yaml:"output"`     // 输出
}
