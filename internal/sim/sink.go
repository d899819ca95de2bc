package sim

import (
	"encoding/json"

	"github.com/charmbracelet/log"
)

// LogEntry is one narrative line.
type LogEntry struct {
	Age   int    `json:"age"`
	Text  string `json:"text"`
	Class string `json:"class"`
}

// Sink receives everything a session wants shown. It knows nothing about
// how it is rendered.
type Sink interface {
	Log(e LogEntry)
	Field(name string, value any)
}

type nopSink struct{}

func (nopSink) Log(LogEntry) {}
func (nopSink) Field(string, any) {}

// MultiSink fans out to every member.
type MultiSink []Sink

func (m MultiSink) Log(e LogEntry) {
	for _, s := range m {
		s.Log(e)
	}
}

func (m MultiSink) Field(name string, value any) {
	for _, s := range m {
		s.Field(name, value)
	}
}

// Event is a recorded sink call, stamped with the age it happened at.
type Event struct {
	T       float64        `json:"t"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Recorder keeps sink calls in memory. Field updates are only kept when
// Fields is set.
type Recorder struct {
	Fields bool
	Events []Event
	age    int
}

func (r *Recorder) Log(e LogEntry) {
	r.age = e.Age
	r.Events = append(r.Events, Event{T: float64(e.Age), Type: "LogLine", Payload: map[string]any{
		"text": e.Text, "class": e.Class,
	}})
}

func (r *Recorder) Field(name string, value any) {
	if name == "age" {
		if a, ok := value.(int); ok {
			r.age = a
		}
	}
	if !r.Fields {
		return
	}
	r.Events = append(r.Events, Event{T: float64(r.age), Type: "Field", Payload: map[string]any{
		"name": name, "value": value,
	}})
}

// Lines returns the logged texts in order.
func (r *Recorder) Lines() []string {
	var out []string
	for _, ev := range r.Events {
		if ev.Type != "LogLine" {
			continue
		}
		if s, ok := ev.Payload["text"].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// LogSink writes narrative lines to a structured logger.
type LogSink struct {
	Logger *log.Logger
}

func (l LogSink) Log(e LogEntry) {
	l.Logger.Info(e.Text, "age", e.Age, "class", e.Class)
}

func (l LogSink) Field(name string, value any) {
	l.Logger.Debug("field", "name", name, "value", value)
}

func MarshalPretty(v any) []byte {
	b, _ := json.MarshalIndent(v, "", "  ")
	return b
}
