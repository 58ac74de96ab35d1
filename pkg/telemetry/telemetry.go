package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/convene/pkg/model"
)

// Kind classifies an event
type Kind string

const (
	KindQuery                 Kind = "query"
	KindMessageSent           Kind = "message_sent"
	KindDecision              Kind = "decision"
	KindCollaboratorInvoked   Kind = "collaborator_invoked"
	KindCollaboratorResponded Kind = "collaborator_responded"
	KindMemoryOperation       Kind = "memory_operation"
	KindFinalResponse         Kind = "final_response"
)

// Event is a structured observation of the pipeline. Which fields are set
// depends on Kind.
type Event struct {
	Kind Kind
	Time time.Time

	// From is the acting agent, To the receiving one when there is one
	From model.Agent
	To   model.Agent

	MessageType model.MessageType
	Payload     map[string]any

	// Summary is the headline, Detail the reasoning, task or details line
	Summary    string
	Detail     string
	Confidence float64
	Failed     bool
}

// Sink receives events. Implementations must not affect the caller; errors
// are swallowed or logged.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) {}

// Nop returns a sink that drops every event
func Nop() Sink { return nopSink{} }

type multiSink []Sink

func (m multiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// Multi fans events out to every non-nil sink in order
func Multi(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return Nop()
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns recorded events in emission order
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of recorded events in emission order
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}
