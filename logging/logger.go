package logging

// Logger is the structured, leveled logger used throughout pcgrid. The `w` variants take
// alternating keys and values, the `f` variants a format string.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	SetLevel(level Level)
	GetLevel() Level
	// Sublogger returns a logger named `<name>.<subname>` sharing this logger's appenders. Its
	// level starts at this logger's level and is changed independently.
	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	// Sync flushes every appender.
	Sync() error
}
