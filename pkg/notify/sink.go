package notify

import (
	"context"
	"log/slog"
	"sync"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging to logger, or slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "notify")}
}

// Notify logs e at a level matching its severity.
func (s *LogSink) Notify(e Event) {
	level := slog.LevelInfo
	if e.Severity == SeverityError {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, e.Title, "kind", e.Kind, "message", e.Message)
}

// Broadcaster is the part of the websocket hub HubSink needs.
type Broadcaster interface {
	BroadcastJSON(v any) error
}

// HubSink pushes events as JSON to every websocket subscriber.
type HubSink struct {
	b Broadcaster
}

// NewHubSink wraps b.
func NewHubSink(b Broadcaster) *HubSink {
	return &HubSink{b: b}
}

// Notify broadcasts e; encoding failures are dropped.
func (s *HubSink) Notify(e Event) {
	_ = s.b.BroadcastJSON(struct {
		Type  string `json:"type"`
		Event Event  `json:"event"`
	}{Type: "notification", Event: e})
}

// Recorder keeps the most recent events in memory.
type Recorder struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

// NewRecorder keeps at most limit events; limit <= 0 keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Notify appends e, evicting the oldest event past the limit.
func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append(r.events[:0:0], r.events[len(r.events)-r.limit:]...)
	}
}

// Events returns a copy, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events have kind k.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// Last returns the newest event.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Notify forwards e to every non-nil sink.
func (m Multi) Notify(e Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(e)
		}
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})
