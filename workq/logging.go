package workq

import (
	"github.com/joeycumines/logiface"
)

// Logger is the structured logger type accepted by WithLogger: a
// logiface.Logger bound to this package's Event implementation. The zero
// value (nil) is valid and logs nothing, matching logiface's own
// disabled-when-no-writer behavior.
type Logger = *logiface.Logger[*Event]

// Event is this package's logiface.Event implementation, used for job
// lifecycle and scheduling diagnostics (job activation and lock_run busy).
type Event struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	msg    string
	err    error
	fields []eventField
}

type eventField struct {
	key string
	val any
}

func (e *Event) mustEmbedUnimplementedEvent() {}

// Level returns the level the event was constructed with.
func (e *Event) Level() logiface.Level { return e.level }

// AddField records a field for later rendering by a Writer.
func (e *Event) AddField(key string, val any) {
	e.fields = append(e.fields, eventField{key: key, val: val})
}

// AddMessage records the event's human-readable message.
func (e *Event) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

// AddError records the event's error, in addition to AddField.
func (e *Event) AddError(err error) bool {
	e.err = err
	return true
}

// Field is one key/value pair attached to an Event, returned by Fields.
type Field struct {
	Key string
	Val any
}

// Fields returns the fields attached to the event, for use by a Writer.
func (e *Event) Fields() []Field {
	out := make([]Field, len(e.fields))
	for i, f := range e.fields {
		out[i] = Field{Key: f.key, Val: f.val}
	}
	return out
}

// Message returns the event's message, as set by AddMessage.
func (e *Event) Message() string { return e.msg }

// Err returns the event's error, as set by AddError, if any.
func (e *Event) Err() error { return e.err }

// eventFactory implements logiface.EventFactory[*Event].
type eventFactory struct{}

func (eventFactory) NewEvent(level logiface.Level) *Event { return &Event{level: level} }

// eventReleaser implements logiface.EventReleaser[*Event], clearing an
// Event's fields so it may, in principle, be pooled by a caller-supplied
// Writer; this package itself allocates a fresh Event per log call.
type eventReleaser struct{}

func (eventReleaser) ReleaseEvent(e *Event) {
	if e == nil {
		return
	}
	e.msg = ""
	e.err = nil
	e.fields = e.fields[:0]
}

// NewLogger constructs a Logger writing through w at the given minimum
// level. Passing a nil Writer yields a Logger that logs nothing (matching
// the package default), since logiface disables output with no writer
// configured.
func NewLogger(w logiface.Writer[*Event], level logiface.Level) Logger {
	opts := []logiface.Option[*Event]{
		logiface.WithEventFactory[*Event](eventFactory{}),
		logiface.WithEventReleaser[*Event](eventReleaser{}),
		logiface.WithLevel[*Event](level),
	}
	if w != nil {
		opts = append(opts, logiface.WithWriter[*Event](w))
	}
	return logiface.New[*Event](logiface.WithOptions(opts...))
}
