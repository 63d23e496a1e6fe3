package logging

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans every enabled entry out to its appenders.
type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	mu        sync.Mutex
	appenders []Appender
}

func newImpl(name string, level Level, inUTC bool, appenders ...Appender) *impl {
	return &impl{name: name, level: NewAtomicLevelAt(level), inUTC: inUTC, appenders: appenders}
}

func (imp *impl) AddAppender(appender Appender) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) snapshot() []Appender {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.appenders
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	appenders := imp.snapshot()
	return newImpl(name, imp.GetLevel(), imp.inUTC, appenders[:len(appenders):len(appenders)]...)
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.snapshot() {
		err = multierr.Combine(err, appender.Sync())
	}
	return err
}

// callerSkip is the number of frames between newEntry and the code that called a Logger method:
// newEntry, log/logf/logw, the exported method.
const callerSkip = 3

func (imp *impl) newEntry(level Level, msg string) zapcore.Entry {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	if pc, file, line, ok := runtime.Caller(callerSkip); ok {
		entry.Caller = zapcore.NewEntryCaller(pc, file, line, true)
	}
	return entry
}

func (imp *impl) write(entry zapcore.Entry, fields []zapcore.Field) {
	for _, appender := range imp.snapshot() {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) log(level Level, args []interface{}) {
	if level < imp.GetLevel() {
		return
	}
	imp.write(imp.newEntry(level, fmt.Sprint(args...)), nil)
}

func (imp *impl) logf(level Level, template string, args []interface{}) {
	if level < imp.GetLevel() {
		return
	}
	imp.write(imp.newEntry(level, fmt.Sprintf(template, args...)), nil)
}

func (imp *impl) logw(level Level, msg string, keysAndValues []interface{}) {
	if level < imp.GetLevel() {
		return
	}
	imp.write(imp.newEntry(level, msg), toFields(keysAndValues))
}

// toFields pairs up keys and values. A trailing key without a value is kept with an error value
// so the mistake shows up in the output.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	imp.log(DEBUG, args)
}

func (imp *impl) Info(args ...interface{}) {
	imp.log(INFO, args)
}

func (imp *impl) Warn(args ...interface{}) {
	imp.log(WARN, args)
}

func (imp *impl) Error(args ...interface{}) {
	imp.log(ERROR, args)
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.logf(DEBUG, template, args)
}

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.logf(INFO, template, args)
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.logf(WARN, template, args)
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.logf(ERROR, template, args)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.logw(DEBUG, msg, keysAndValues)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.logw(INFO, msg, keysAndValues)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.logw(WARN, msg, keysAndValues)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.logw(ERROR, msg, keysAndValues)
}
