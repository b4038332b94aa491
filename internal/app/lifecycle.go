package app

// StopReason is logged when the daemon shuts down.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

// TopicRestart is published on the event bus when a supervised listener restarts.
const TopicRestart = "supervisor.restart"

type RestartEvent struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}
