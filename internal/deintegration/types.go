package deintegration

import "time"

// Policy selects how the Cleanup step (4) tears down an integration's
// external resources (spec §4.6).
type Policy string

const (
	PolicyImmediate Policy = "immediate"
	PolicyGraceful  Policy = "graceful"
	PolicyScheduled Policy = "scheduled"
	PolicyManual    Policy = "manual"
)

// Status is the overall deintegration record's lifecycle state.
type Status string

const (
	StatusInProgress         Status = "in_progress"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusScheduled          Status = "scheduled"
	StatusAwaitingConfirm    Status = "awaiting_confirmation"
)

// StepStatus is one pipeline step's outcome.
type StepStatus string

const (
	StepPending              StepStatus = "pending"
	StepOK                    StepStatus = "ok"
	StepFailed                StepStatus = "failed"
	StepSkipped               StepStatus = "skipped"
	StepScheduled             StepStatus = "scheduled"
	StepAwaitingConfirmation  StepStatus = "awaiting_confirmation"
)

const (
	StepValidate          = "validate"
	StepNotifyDependents   = "notify_dependents"
	StepSaveState          = "save_state"
	StepCleanup            = "cleanup"
	StepVerifyCleanup      = "verify_cleanup"
	StepPersistRecord      = "persist_record"
)

// DependentNotification records the outcome of notifying one dependent
// during step 2 (spec §4.6 step 2: "recorded per-dependent").
type DependentNotification struct {
	DependentID string `json:"dependentId"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
}

// Step is one pipeline stage's recorded outcome (spec §3).
type Step struct {
	Name      string                   `json:"name"`
	StartedAt time.Time                `json:"startedAt"`
	EndedAt   time.Time                `json:"endedAt,omitzero"`
	Status    StepStatus               `json:"status"`
	Checks    []DependentNotification  `json:"checks,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// Options mirrors spec §6's delete-integration request body.
type Options struct {
	Policy       Policy
	PreserveData bool
	Force        bool
	AtTime       time.Time // only meaningful when Policy == PolicyScheduled
}

// Record is the persisted deintegration record (spec §3).
type Record struct {
	ID              string    `json:"id"`
	IntegrationID   string    `json:"integrationId"`
	IntegrationName string    `json:"integrationName"`
	AdapterType     string    `json:"adapterType"`
	Policy        Policy    `json:"policy"`
	StartedAt     time.Time `json:"startedAt"`
	EndedAt       time.Time `json:"endedAt,omitzero"`
	Status        Status    `json:"status"`
	Steps         []Step    `json:"steps"`
}

// StateArtifact is the `<id>-state.json` document written by step 3
// (spec §6 persisted state layout).
type StateArtifact struct {
	IntegrationID   string                 `json:"integrationId"`
	DeintegrationID string                 `json:"deintegrationId"`
	Timestamp       time.Time              `json:"timestamp"`
	State           interface{}            `json:"state"`
	Metadata        StateArtifactMetadata  `json:"metadata"`
}

// StateArtifactMetadata names the adapter the state was captured from,
// needed by Reintegrate to reconstruct the right integration type.
type StateArtifactMetadata struct {
	AdapterType string `json:"adapterType"`
	Version     string `json:"version"`
}
