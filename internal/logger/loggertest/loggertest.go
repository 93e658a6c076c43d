// Package loggertest builds loggers whose entries can be inspected in tests.
package loggertest

import (
	"astba/training-app/internal/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// NewObserved returns a logger whose entries are captured in memory.
func NewObserved() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}
