// Package monitoring holds the diagnostic logger shared by the simulator's
// packages. Entries go through zap; the CLI mutes them unless --verbose is
// set.
package monitoring

import "go.uber.org/zap"

var logger = newLogger()

// Logf writes one diagnostic line at info level. Replace it with SetLogger
// or UseZap.
var Logf func(format string, v ...interface{}) = logger.Infof

func newLogger() *zap.SugaredLogger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// UseZap routes Logf through l.
func UseZap(l *zap.Logger) {
	logger = l.Sugar()
	Logf = logger.Infof
}

// SetLogger replaces Logf with f. Passing nil installs a no-op zap logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		UseZap(zap.NewNop())
		return
	}
	Logf = f
}

// Sync flushes the zap logger behind Logf.
func Sync() error {
	return logger.Sync()
}
