package logging

import (
	pionlog "github.com/pion/logging"
	"github.com/rs/zerolog"
)

// PionFactory routes pion's internal logs through zerolog.
type PionFactory struct {
	Logger zerolog.Logger
}

var _ pionlog.LoggerFactory = (*PionFactory)(nil)

func NewPionFactory(base zerolog.Logger) *PionFactory {
	return &PionFactory{Logger: base}
}

func (f *PionFactory) NewLogger(scope string) pionlog.LeveledLogger {
	return &pionLogger{log: f.Logger.With().Str("pion", scope).Logger()}
}

// pionLogger is demoted by one level: pion's info is our debug.
type pionLogger struct {
	log zerolog.Logger
}

func (l *pionLogger) Trace(msg string) { l.log.Trace().Msg(msg) }
func (l *pionLogger) Tracef(format string, args ...any) {
	l.log.Trace().Msgf(format, args...)
}

func (l *pionLogger) Debug(msg string) { l.log.Trace().Msg(msg) }
func (l *pionLogger) Debugf(format string, args ...any) {
	l.log.Trace().Msgf(format, args...)
}

func (l *pionLogger) Info(msg string) { l.log.Debug().Msg(msg) }
func (l *pionLogger) Infof(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *pionLogger) Warn(msg string) { l.log.Warn().Msg(msg) }
func (l *pionLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *pionLogger) Error(msg string) { l.log.Error().Msg(msg) }
func (l *pionLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
