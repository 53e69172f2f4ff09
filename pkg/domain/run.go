package domain

import "time"

// RunStatus is the lifecycle status of one acquisition run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunFailed    RunStatus = "failed"
)

// RunRecord summarizes one acquisition run. It is what stores persist.
type RunRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	OrderMode OrderMode `json:"order_mode"`
	Status    RunStatus `json:"status"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	EventsPlanned    int `json:"events_planned"`
	EventsExecuted   int `json:"events_executed"`
	EventsSuppressed int `json:"events_suppressed"`
	HookFailures     int `json:"hook_failures"`

	Error string `json:"error,omitempty"`
}

// Done reports whether the run reached a terminal status.
func (r *RunRecord) Done() bool {
	return r.Status != RunRunning && r.Status != ""
}
