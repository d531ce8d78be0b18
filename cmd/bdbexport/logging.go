package main

import (
	"github.com/streamingfast/logging"
	"go.uber.org/zap/zapcore"
)

var zlog, _ = logging.RootLogger("bdbexport", "github.com/noidtools/bdbexport/cmd/bdbexport")

func setup(verbose bool) {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.InfoLevel
	}
	logging.InstantiateLoggers(logging.WithDefaultLevel(level))
}
