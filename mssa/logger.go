package mssa

import "go.uber.org/zap"

// Logger pairs a zap logger with the name of the module writing through it.
// Messages prefix themselves with Module() so interleaved construction logs
// stay attributable.
type Logger struct {
	*zap.SugaredLogger
	module string
}

// LogSetter is implemented by values that accept a construction logger.
type LogSetter interface {
	SetLogger(*Logger)
}

// Module returns (stylised) module name.
func (l *Logger) Module() string {
	return l.module
}
