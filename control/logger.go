// File: control/logger.go
// Author: momentics <momentics@gmail.com>
//
// logiface backend over zerolog, for binaries.

package control

import (
	"io"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

type zeroEvent struct {
	logiface.UnimplementedEvent
	z     *zerolog.Event
	level logiface.Level
	msg   string
}

func (e *zeroEvent) Level() logiface.Level { return e.level }

func (e *zeroEvent) AddField(key string, val any) { e.z.Interface(key, val) }

func (e *zeroEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

func (e *zeroEvent) AddError(err error) bool {
	e.z.Err(err)
	return true
}

func (e *zeroEvent) AddString(key, val string) bool {
	e.z.Str(key, val)
	return true
}

func (e *zeroEvent) AddInt(key string, val int) bool {
	e.z.Int(key, val)
	return true
}

func (e *zeroEvent) AddInt64(key string, val int64) bool {
	e.z.Int64(key, val)
	return true
}

func (e *zeroEvent) AddUint64(key string, val uint64) bool {
	e.z.Uint64(key, val)
	return true
}

func (e *zeroEvent) AddBool(key string, val bool) bool {
	e.z.Bool(key, val)
	return true
}

func (e *zeroEvent) AddDuration(key string, val time.Duration) bool {
	e.z.Dur(key, val)
	return true
}

func (e *zeroEvent) AddTime(key string, val time.Time) bool {
	e.z.Time(key, val)
	return true
}

// zeroLevel maps syslog-style levels onto zerolog's. WithLevel is used for
// every level, so fatal and panic events never exit or unwind.
func zeroLevel(level logiface.Level) zerolog.Level {
	switch level {
	case logiface.LevelTrace:
		return zerolog.TraceLevel
	case logiface.LevelDebug:
		return zerolog.DebugLevel
	case logiface.LevelInformational:
		return zerolog.InfoLevel
	case logiface.LevelNotice, logiface.LevelWarning:
		return zerolog.WarnLevel
	case logiface.LevelError:
		return zerolog.ErrorLevel
	case logiface.LevelCritical, logiface.LevelAlert:
		return zerolog.FatalLevel
	case logiface.LevelEmergency:
		return zerolog.PanicLevel
	}
	return zerolog.TraceLevel
}

func newZeroLogger(z zerolog.Logger, level logiface.Level) *Logger {
	z = z.Level(zerolog.TraceLevel).With().Timestamp().Logger()
	logger := logiface.New[*zeroEvent](
		logiface.WithLevel[*zeroEvent](level),
		logiface.WithEventFactory[*zeroEvent](logiface.NewEventFactoryFunc(func(level logiface.Level) *zeroEvent {
			return &zeroEvent{z: z.WithLevel(zeroLevel(level)), level: level}
		})),
		logiface.WithWriter[*zeroEvent](logiface.NewWriterFunc(func(e *zeroEvent) error {
			e.z.Msg(e.msg)
			return nil
		})),
	)
	return logger.Logger()
}

// NewTextLogger returns a logger writing one human-readable line per event
// to w, fields sorted by key. Events below level are discarded.
func NewTextLogger(w io.Writer, level logiface.Level) *Logger {
	out := zerolog.ConsoleWriter{Out: zerolog.SyncWriter(w), NoColor: true, TimeFormat: time.RFC3339Nano}
	return newZeroLogger(zerolog.New(out), level)
}

// NewJSONLogger returns a logger writing one JSON object per event to w.
func NewJSONLogger(w io.Writer, level logiface.Level) *Logger {
	return newZeroLogger(zerolog.New(zerolog.SyncWriter(w)), level)
}
