package types

import "time"

// Stage identifies where in the ingestion pipeline an item succeeded or failed.
type Stage string

const (
	StageFetch       Stage = "fetch"
	StageFingerprint Stage = "fingerprint"
	StageLookup      Stage = "lookup"
	StageProcess     Stage = "process"
	StageEmbed       Stage = "embed"
	StageUpsert      Stage = "upsert"
)

// Outcome is the terminal status of a single source item in a batch run.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// ItemResult records the terminal state of one source item.
type ItemResult struct {
	Source      string  `json:"source"`
	Outcome     Outcome `json:"outcome"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	Stage       Stage   `json:"stage,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// ItemFailure describes a single failed source item for the batch report.
type ItemFailure struct {
	Source string `json:"source"`
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// BatchReport aggregates per-item outcomes of one ingestion run.
type BatchReport struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Failed     []ItemFailure `json:"failed"`
	Items      []ItemResult  `json:"items"`
}

// Total returns the number of items covered by the report.
func (r BatchReport) Total() int {
	return r.Inserted + r.Updated + r.Skipped + len(r.Failed)
}
