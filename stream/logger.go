package stream

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "stream")
