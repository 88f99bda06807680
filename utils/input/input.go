package input

import (
	"fmt"

	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
)

// Input 输入数据
// 功能：存储模拟所需的所有输入数据
type Input struct {
	Environment *environment.Environment
	Source      string // 环境来源，内置场景名或描述文件路径
}

// Init 加载输入数据
// 功能：根据配置加载并校验模拟环境
// 参数：config-配置对象
// 返回：加载完成的输入数据；环境不合法时返回的错误包装了*config.ConfigurationError
// 算法说明：
// 1. 配置了描述文件时优先从文件加载
// 2. 否则按名称使用内置场景
func Init(config config.Config) (*Input, error) {
	if config.Input.File != "" {
		if err := checkFile(config.Input.File); err != nil {
			return nil, err
		}
		d, err := environment.LoadDescription(config.Input.File)
		if err != nil {
			return nil, err
		}
		env, err := d.Build()
		if err != nil {
			return nil, fmt.Errorf("build environment from %s: %w", config.Input.File, err)
		}
		log.Infof("load environment %q from %s", env.Name, config.Input.File)
		return &Input{Environment: env, Source: config.Input.File}, nil
	}
	env, err := environment.Builtin(config.Input.Environment)
	if err != nil {
		return nil, err
	}
	log.Infof("use builtin environment %q", env.Name)
	return &Input{Environment: env, Source: config.Input.Environment}, nil
}
