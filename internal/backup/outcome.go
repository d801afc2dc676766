package backup

import "etcd-backup-agent/internal/notify"

// OutcomeKind classifies how a backup run ended
type OutcomeKind string

const (
	// OutcomeCompleted means an artifact was produced, uploaded and verified
	OutcomeCompleted OutcomeKind = "completed"

	// OutcomeSkipped means the run ended early for a legitimate reason,
	// such as unchanged source state or a recent backup from another node
	OutcomeSkipped OutcomeKind = "skipped"

	// OutcomeFailed means the run hit a fatal error
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the result of a backup run. Exactly one of Reason and Err
// is meaningful: Reason for skips, Err for failures.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error

	// Status is what gets reported to the monitoring webhook
	Status notify.Status
}

// Completed builds a successful outcome
func Completed() Outcome {
	return Outcome{Kind: OutcomeCompleted, Status: notify.StatusSuccess}
}

// Skipped builds a skip outcome with its reason and webhook status
func Skipped(reason string, status notify.Status) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason, Status: status}
}

// Failed builds a fatal outcome
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err, Status: notify.StatusFailure}
}

// OK reports whether the run should exit zero
func (o Outcome) OK() bool {
	return o.Kind != OutcomeFailed
}
