package input

import (
	"os"

	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
)

// checkFile 预检查环境描述文件
// 功能：文件不存在或是目录时返回配置错误
func checkFile(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return config.NewConfigurationError("input.file", "%v", err)
	}
	if stat.IsDir() {
		return config.NewConfigurationError("input.file", "%s is a directory", path)
	}
	return nil
}
