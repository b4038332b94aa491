package relay

import (
	"context"
	"time"

	"hiprelay/internal/event"
)

// Notifier is invoked directly by whatever component owns event intake.
type Notifier interface {
	OnAlert(ctx context.Context, ev event.Alert) Result
	OnGroupEvent(ctx context.Context, ev event.Group) Result
}

const (
	KindAlert = "alert"
	KindGroup = "group"
)

// Outcome is the terminal state of one dispatch.
type Outcome string

const (
	// OutcomeSkipped: the project is not configured (or the event is unusable).
	OutcomeSkipped Outcome = "skipped"
	// OutcomeSuppressed: a dedup marker for the group is still live.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeSent: the chat API confirmed the message.
	OutcomeSent Outcome = "sent"
	// OutcomeFailed: one attempt was made and it did not succeed.
	OutcomeFailed Outcome = "failed"
)

// Result describes a finished dispatch. Err is informational only.
type Result struct {
	ID      string
	Kind    string
	Outcome Outcome
	Err     error
}

// Event bus topics.
const (
	TopicSent       = "relay.sent"
	TopicSuppressed = "relay.suppressed"
	TopicFailed     = "relay.failed"
	TopicSkipped    = "relay.skipped"
	TopicDropped    = "relay.dropped"
)

// DispatchEvent is the bus payload for relay topics.
type DispatchEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ProjectID string    `json:"project_id"`
	GroupID   string    `json:"group_id,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

func topicFor(o Outcome) string {
	switch o {
	case OutcomeSent:
		return TopicSent
	case OutcomeSuppressed:
		return TopicSuppressed
	case OutcomeFailed:
		return TopicFailed
	default:
		return TopicSkipped
	}
}
