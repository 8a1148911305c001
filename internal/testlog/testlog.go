// File: internal/testlog/testlog.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Capturing logiface logger for tests.

package testlog

import (
	"sync"

	"github.com/joeycumines/logiface"
)

// Entry is one captured log event.
type Entry struct {
	Level   logiface.Level
	Message string
	Fields  map[string]any
}

// Recorder collects every event written to its logger.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

type event struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	msg    string
	fields map[string]any
}

func (e *event) Level() logiface.Level { return e.level }

func (e *event) AddField(key string, val any) { e.fields[key] = val }

func (e *event) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

func (e *event) AddError(err error) bool {
	e.fields["err"] = err
	return true
}

// New returns a recorder and a logger writing to it at debug level.
func New() (*Recorder, *logiface.Logger[logiface.Event]) {
	r := &Recorder{}
	logger := logiface.New[*event](
		logiface.WithLevel[*event](logiface.LevelDebug),
		logiface.WithEventFactory[*event](logiface.NewEventFactoryFunc(func(level logiface.Level) *event {
			return &event{level: level, fields: make(map[string]any)}
		})),
		logiface.WithWriter[*event](logiface.NewWriterFunc(func(e *event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.entries = append(r.entries, Entry{Level: e.level, Message: e.msg, Fields: e.fields})
			return nil
		})),
	)
	return r, logger.Logger()
}

// Entries returns a copy of the captured events.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Messages returns the captured messages in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Message
	}
	return out
}

// Find returns the first entry with the given message.
func (r *Recorder) Find(msg string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Message == msg {
			return e, true
		}
	}
	return Entry{}, false
}
