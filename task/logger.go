package task

import "github.com/sirupsen/logrus"

// log 模拟任务的日志记录器
var log = logrus.WithField("module", "task")
