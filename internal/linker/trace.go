package linker

import (
	"time"

	"github.com/google/uuid"
)

// TraceEventKind classifies each trace event by type.
type TraceEventKind string

const (
	// KindResolveStarted is emitted when resolution of a mention begins.
	KindResolveStarted TraceEventKind = "resolve_started"

	// KindUnsupportedCategory is emitted when the mention's category is
	// outside the recognized enumeration.
	KindUnsupportedCategory TraceEventKind = "unsupported_category"

	// KindRetrievalAttempt is emitted once per fuzziness level, recording
	// the raw and post-filter candidate counts.
	KindRetrievalAttempt TraceEventKind = "retrieval_attempt"

	// KindRanked is emitted after disambiguation scoring.
	KindRanked TraceEventKind = "ranked"

	// KindOutcome closes the trace with the terminal state.
	KindOutcome TraceEventKind = "outcome"
)

// TraceEvent is a single structured event recorded during resolution.
type TraceEvent struct {
	// Kind identifies the event type.
	Kind TraceEventKind `json:"kind"`

	// At is the wall-clock time the event was recorded.
	At time.Time `json:"at"`

	// Distance is the fuzzy distance of a retrieval_attempt event.
	Distance uint `json:"distance,omitempty"`

	// Retrieved is the raw candidate count of a retrieval_attempt event.
	Retrieved int `json:"retrieved,omitempty"`

	// Surviving is the post-filter candidate count.
	Surviving int `json:"surviving,omitempty"`

	// Detail carries free-form event context (query text, outcome name).
	Detail string `json:"detail,omitempty"`
}

// Trace records the resolution path of one mention for diagnostics.
type Trace struct {
	// ID uniquely identifies this resolution attempt.
	ID string `json:"id"`

	// Events is the ordered event log.
	Events []TraceEvent `json:"events"`
}

func newTrace() *Trace {
	return &Trace{ID: uuid.NewString()}
}

func (t *Trace) add(ev TraceEvent) {
	if t == nil {
		return
	}
	ev.At = time.Now()
	t.Events = append(t.Events, ev)
}
