package schema

import "time"

// PanelStatus describes where a panel's pipeline is.
type PanelStatus string

const (
	// PanelStatusIdle indicates no run is in flight.
	PanelStatusIdle PanelStatus = "idle"
	// PanelStatusRunning indicates a run is in flight.
	PanelStatusRunning PanelStatus = "running"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	// OutcomeSucceeded marks a published success.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed marks a published failure.
	OutcomeFailed Outcome = "failed"
)

// PanelUpdate is what a pipeline publishes to renderers.
type PanelUpdate struct {
	PanelID PanelID
	Kind    PanelKind
	Token   RunToken
	RunID   string
	Reason  TriggerReason
	Outcome Outcome

	// Shape is set on success.
	Shape        PanelShape
	ConsoleText  string
	PrintedValue string

	// FailureKind and Message are set on failure.
	FailureKind FailureKind
	Message     string

	Started  time.Time
	Duration time.Duration
}

// Succeeded reports whether the update carries a success.
func (u PanelUpdate) Succeeded() bool {
	return u.Outcome == OutcomeSucceeded
}

// PanelSnapshot is a read-only view of panel state.
type PanelSnapshot struct {
	ID          PanelID
	Kind        PanelKind
	Status      PanelStatus
	Parameters  Parameters
	Source      string
	Generated   Dataset
	PendingRun  RunToken
	LastResult  *PanelUpdate
	SourceEdits int
}
