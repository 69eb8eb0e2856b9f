package model

import "time"

// RunStatus tracks the orchestrator state machine. The progression is
// linear with no backtracking; every run ends in done unless the request
// itself was invalid.
type RunStatus string

const (
	RunStatusPending     RunStatus = "pending"
	RunStatusCollecting  RunStatus = "collecting"
	RunStatusExtracting  RunStatus = "extracting"
	RunStatusReconciling RunStatus = "reconciling"
	RunStatusEvaluating  RunStatus = "evaluating_competitors"
	RunStatusAssembling  RunStatus = "assembling"
	RunStatusDone        RunStatus = "done"
)

// Run records a single enrichment run.
type Run struct {
	ID        string            `json:"id"`
	Request   EnrichmentRequest `json:"request"`
	Status    RunStatus         `json:"status"`
	Profile   *CompanyProfile   `json:"profile,omitempty"`
	Stages    []StageResult     `json:"stages,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StageStatus is the outcome of one orchestrator stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusDegraded StageStatus = "degraded"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageResult is the audit record for one stage of a run. A degraded stage
// resolved its outputs to unknown/empty instead of failing the run.
type StageResult struct {
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
