package telemetry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/convene/pkg/utils/logging"
)

// LogSink writes events to the context logger as structured records
type LogSink struct{}

// NewLogSink creates a LogSink
func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Emit(ctx context.Context, ev Event) {
	logger := logging.From(ctx)
	attrs := []any{"kind", ev.Kind}
	if ev.From != "" {
		attrs = append(attrs, "from", ev.From)
	}
	if ev.To != "" {
		attrs = append(attrs, "to", ev.To)
	}
	if ev.MessageType != "" {
		attrs = append(attrs, "type", ev.MessageType)
	}
	if ev.Detail != "" {
		attrs = append(attrs, "detail", ev.Detail)
	}

	switch ev.Kind {
	case KindCollaboratorResponded:
		attrs = append(attrs, "confidence", ev.Confidence)
		if ev.Failed {
			logger.Warn(ev.Summary, attrs...)
			return
		}
		logger.Info(ev.Summary, attrs...)
	case KindMessageSent, KindMemoryOperation:
		logger.Debug(ev.Summary, attrs...)
	default:
		logger.Info(ev.Summary, attrs...)
	}
}

const timestampFormat = "2006-01-02 15:04:05"

// TranscriptSink writes a line-oriented, human readable log of a session.
// Scenario runs keep it as their output file.
type TranscriptSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTranscriptSink creates a TranscriptSink writing to w
func NewTranscriptSink(w io.Writer) *TranscriptSink {
	return &TranscriptSink{w: w}
}

func (s *TranscriptSink) Emit(ctx context.Context, ev Event) {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.Format(timestampFormat)

	var lines []string
	switch ev.Kind {
	case KindQuery:
		bar := strings.Repeat("=", 80)
		lines = []string{bar, fmt.Sprintf("[%s] NEW USER QUERY: %s", stamp, ev.Summary), bar}
	case KindMessageSent:
		lines = []string{
			fmt.Sprintf("[%s] MESSAGE: %s -> %s | Type: %s", stamp, ev.From, ev.To, ev.MessageType),
			fmt.Sprintf("  Payload: %v", ev.Payload),
		}
	case KindDecision:
		lines = []string{
			fmt.Sprintf("[%s] DECISION (%s): %s", stamp, ev.From, ev.Summary),
			"  Reasoning: " + ev.Detail,
		}
	case KindCollaboratorInvoked:
		lines = []string{
			fmt.Sprintf("[%s] AGENT_CALL: %s invokes %s", stamp, ev.From, ev.To),
			"  Task: " + ev.Detail,
		}
	case KindCollaboratorResponded:
		lines = []string{
			fmt.Sprintf("[%s] AGENT_RESPONSE (%s): Confidence=%.2f", stamp, ev.From, ev.Confidence),
			"  Summary: " + ev.Summary,
		}
	case KindMemoryOperation:
		lines = []string{
			fmt.Sprintf("[%s] MEMORY: %s", stamp, ev.Summary),
			"  Details: " + ev.Detail,
		}
	case KindFinalResponse:
		lines = []string{
			fmt.Sprintf("\n[%s] FINAL RESPONSE:", stamp),
			strings.Repeat("-", 80),
			ev.Summary,
			strings.Repeat("=", 80),
			"",
		}
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range lines {
		if _, err := io.WriteString(s.w, line+"\n"); err != nil {
			logging.From(ctx).Warn("failed to write transcript", "error", err)
			return
		}
	}
}
