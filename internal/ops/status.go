package ops

import "github.com/fieldrobotics/mission-orchestrator/model"

// FailurePolicy decides what a single mission failure does to the rest
// of the operation.
type FailurePolicy int

const (
	// FailureContinue lets other missions run to their own outcome.
	FailureContinue FailurePolicy = iota
	// FailureAbort cancels every other active mission.
	FailureAbort
)

// ParseFailurePolicy maps the config strings onto a policy; anything
// unrecognized falls back to continue.
func ParseFailurePolicy(s string) FailurePolicy {
	if s == "abort" {
		return FailureAbort
	}
	return FailureContinue
}

// AggregateStatus folds per-mission statuses into one operation-level
// status. With active missions present the aggregate is the least
// advanced active status, so a dashboard reads the operation as being
// in its earliest outstanding phase. With only terminal missions left:
// all completed reads completed, any failure reads failed, otherwise
// aborted.
func AggregateStatus(statuses []model.OperationStatus) model.OperationStatus {
	if len(statuses) == 0 {
		return model.StatusIdle
	}

	haveActive := false
	least := model.StatusCompleted
	anyFailed := false
	anyAborted := false
	for _, s := range statuses {
		switch {
		case !s.Terminal():
			haveActive = true
			if s < least {
				least = s
			}
		case s == model.StatusFailed:
			anyFailed = true
		case s == model.StatusAborted:
			anyAborted = true
		}
	}
	if haveActive {
		return least
	}
	if anyFailed {
		return model.StatusFailed
	}
	if anyAborted {
		return model.StatusAborted
	}
	return model.StatusCompleted
}
