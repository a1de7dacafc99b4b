package logging

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger routes gorm diagnostics to logrus at matching levels.
// Bound values are never rendered into logged SQL.
type gormLogger struct {
	log   *logrus.Logger
	level gormlogger.LogLevel
}

// Gorm adapts log into a gorm logger. It is silent unless log is at debug
// level, where statements are traced at debug.
func Gorm(log *logrus.Logger) gormlogger.Interface {
	level := gormlogger.Silent
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}
	return &gormLogger{log: log, level: level}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.WithContext(ctx).Infof(msg, args...)
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.WithContext(ctx).Warnf(msg, args...)
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.WithContext(ctx).Errorf(msg, args...)
	}
}

// Trace logs each statement at debug. Failed statements are returned to
// the caller, which decides whether they are worth reporting.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := l.log.WithContext(ctx).WithFields(logrus.Fields{
		"source":  utils.FileWithLineNum(),
		"elapsed": elapsed.String(),
		"rows":    rows,
	})
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		entry.WithError(err).Debugf("sql failed: %s", sql)
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		entry.Warnf("slow sql: %s", sql)
	case l.level >= gormlogger.Info:
		entry.Debugf("sql: %s", sql)
	}
}

// ParamsFilter keeps placeholders in logged SQL so passwords and emails
// never reach the log.
func (l *gormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}
