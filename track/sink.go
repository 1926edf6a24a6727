package track

import (
	"log/slog"

	"github.com/strata-db/strata/block"
)

// Op identifies a ledger operation in an emitted event.
type Op uint8

const (
	// OpTrack is emitted when Add records a new entry.
	OpTrack Op = iota
	// OpReactivate is emitted when a discarded overflow item is reused.
	OpReactivate
	// OpReset is emitted per entry demoted by ResetOverflow.
	OpReset
	// OpDiscard is emitted when Resolve frees an entry's blocks.
	OpDiscard
)

func (o Op) String() string {
	switch o {
	case OpTrack:
		return "track"
	case OpReactivate:
		return "reactivate"
	case OpReset:
		return "reset"
	case OpDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// Event describes one ledger state change.
type Event struct {
	Page PageID
	Op   Op
	Kind Kind
	Ref  RefID
	Addr block.Addr
	Size uint32
}

// Sink receives ledger events. Emit is fire-and-forget: it must not fail
// the calling operation and should not block. A nil Sink in Options
// disables reporting entirely.
type Sink interface {
	Emit(Event)
}

// SlogSink reports every event at debug level through a structured logger.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink wraps log as a ledger event sink.
func NewSlogSink(log *slog.Logger) *SlogSink {
	return &SlogSink{log: log}
}

func (s *SlogSink) Emit(ev Event) {
	s.log.Debug("track",
		slog.Uint64("page", uint64(ev.Page)),
		slog.String("op", ev.Op.String()),
		slog.String("kind", ev.Kind.String()),
		slog.Uint64("ref", uint64(ev.Ref)),
		slog.Uint64("addr", uint64(ev.Addr)),
		slog.Uint64("size", uint64(ev.Size)),
	)
}

// Recorder collects events in memory, for tests and diagnostics.
type Recorder struct {
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.events = r.events[:0]
}
