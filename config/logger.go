package config

import (
	"go.viam.com/pcgrid/logging"
)

const defaultLogFileMaxSizeMB = 100

// NewLogger returns a logger named name configured by conf.Log, along with a function that
// releases any log file it opened.
func (conf *Config) NewLogger(name string) (logging.Logger, func() error) {
	logger := logging.NewLogger(name)
	if conf.Log == nil {
		return logger, func() error { return nil }
	}
	logger.SetLevel(conf.Log.Level)
	if conf.Log.File == "" {
		return logger, func() error { return nil }
	}
	maxSize := conf.Log.MaxSizeMB
	if maxSize == 0 {
		maxSize = defaultLogFileMaxSizeMB
	}
	appender := logging.NewFileAppender(conf.Log.File, maxSize)
	logger.AddAppender(appender)
	return logger, appender.Close
}
