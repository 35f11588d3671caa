package domain

import "time"

// TriggerReason records why a regeneration was requested.
type TriggerReason string

// Trigger reasons, one per trigger source.
const (
	ReasonScheduled TriggerReason = "scheduled"
	ReasonWebhook   TriggerReason = "webhook"
	ReasonWatch     TriggerReason = "watch"
	ReasonManual    TriggerReason = "manual"
)

// Outcome is the user-visible result of one run.
type Outcome string

// Run outcomes.
const (
	OutcomeUpdated          Outcome = "updated"
	OutcomeSkippedUnchanged Outcome = "skipped-unchanged"
	OutcomeFailed           Outcome = "failed"
)

// RunResult describes one pass of the regeneration pipeline.
type RunResult struct {
	// ID uniquely identifies the run.
	ID string

	// SourceID identifies the configured source.
	SourceID string

	// Reason is the trigger that caused the run.
	Reason TriggerReason

	// Outcome is updated, skipped-unchanged or failed.
	Outcome Outcome

	// ErrorKind classifies the failure when Outcome is failed.
	ErrorKind ErrorKind

	// Err is the failure cause when Outcome is failed.
	Err error

	// ItemsExtracted counts items that survived extraction and dedup.
	ItemsExtracted int

	// ItemsRendered counts entries written to the manifest.
	ItemsRendered int

	// SidecarErrors lists non-fatal sitemap and robots failures.
	SidecarErrors []error

	// ManifestPath is the file the run wrote, or would have written.
	ManifestPath string

	// StartedAt is when the run began.
	StartedAt time.Time

	// EndedAt is when the run finished.
	EndedAt time.Time
}

// Duration returns the wall time of the run.
func (r *RunResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Summary renders the outcome as "updated", "skipped-unchanged" or "failed: <kind>".
func (r *RunResult) Summary() string {
	if r.Outcome == OutcomeFailed {
		return string(r.Outcome) + ": " + string(r.ErrorKind)
	}
	return string(r.Outcome)
}

// Fail marks the result failed with err.
func (r *RunResult) Fail(err error) {
	r.Outcome = OutcomeFailed
	r.Err = err
	r.ErrorKind = KindOf(err)
}

// TriggerAck is the immediate answer to a trigger request.
type TriggerAck string

// Trigger acknowledgements. The rejected auth and IP values are produced by
// the push endpoint before the coordinator is consulted.
const (
	AckRan           TriggerAck = "accepted-ran"
	AckPending       TriggerAck = "accepted-pending"
	AckRejectedAuth  TriggerAck = "rejected-auth"
	AckRejectedIP    TriggerAck = "rejected-ip"
	AckUnknownSource TriggerAck = "rejected-unknown-source"
)

// RunRecord is the persisted history entry for a run.
type RunRecord struct {
	ID             string
	SourceID       string
	Reason         TriggerReason
	Outcome        Outcome
	ErrorKind      ErrorKind
	Error          string
	ItemsExtracted int
	ItemsRendered  int
	StartedAt      time.Time
	EndedAt        time.Time
}

// Record converts a result into its history entry.
func (r *RunResult) Record() RunRecord {
	rec := RunRecord{
		ID:             r.ID,
		SourceID:       r.SourceID,
		Reason:         r.Reason,
		Outcome:        r.Outcome,
		ErrorKind:      r.ErrorKind,
		ItemsExtracted: r.ItemsExtracted,
		ItemsRendered:  r.ItemsRendered,
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}
