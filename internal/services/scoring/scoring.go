// Package scoring turns a report into a violation score delta and the
// sanction that the resulting cumulative score calls for.
package scoring

import (
	"errors"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/domain/rules"
)

// ErrRequiresManual is returned for reasons whose severity is left to the moderator.
var ErrRequiresManual = errors.New("report reason requires a moderator decision")

type Decision struct {
	Delta         int
	NewFinal      int
	Action        enums.SanctionAction
	DurationHours int
}

func (d Decision) NoAction() bool {
	return d.Action == enums.SanctionNoAction
}

// Score computes the automatic outcome of a report against the user's
// current score. Account reports have no content weight and are rejected.
func Score(reason enums.ReportReason, contentType enums.ContentType, current model.ViolationScore) (Decision, error) {
	severity, ok := rules.SeverityOf(reason)
	if !ok {
		return Decision{}, faults.Validation("unknown report reason %q", reason)
	}
	if severity == enums.SeverityContentModeratorDecision {
		return Decision{}, ErrRequiresManual
	}

	base, ok := rules.SeverityScore(severity)
	if !ok {
		return Decision{}, faults.Internal("severity has no score", nil)
	}
	effective, ok := rules.WeightedScore(contentType, base)
	if !ok {
		return Decision{}, faults.Validation("content type %q cannot be scored automatically", contentType)
	}

	newFinal := current.FinalViolationScore + effective
	if newFinal == current.FinalViolationScore {
		return Decision{NewFinal: newFinal, Action: enums.SanctionNoAction}, nil
	}

	action, duration, ok := rules.ActionForScore(newFinal)
	if !ok {
		return Decision{}, faults.NotFound("no action defined for score %d", newFinal)
	}
	return Decision{Delta: effective, NewFinal: newFinal, Action: action, DurationHours: duration}, nil
}

// ManualScore lifts the user's score to the minimum that the chosen action
// requires. With flaggedCount > 0 (account reports) the new final score moves
// up to the next multiple of flaggedCount so it splits evenly across the
// flagged posts. A score that is already a multiple still moves up by a full
// flaggedCount: 600 with three posts becomes 603, not 600.
func ManualScore(action enums.SanctionAction, durationHours int, current model.ViolationScore, flaggedCount int) (Decision, error) {
	if action == enums.SanctionNoAction {
		return Decision{NewFinal: current.FinalViolationScore, Action: action}, nil
	}

	minimum, ok := rules.MinimumScore(action, durationHours)
	if !ok {
		return Decision{}, faults.Validation("no %s action with duration %d hours", action, durationHours)
	}

	decision := Decision{
		NewFinal:      current.FinalViolationScore,
		Action:        action,
		DurationHours: durationHours,
	}
	if current.FinalViolationScore < minimum {
		decision.Delta = minimum - current.FinalViolationScore
		decision.NewFinal = minimum
	}

	if flaggedCount > 0 {
		roundUp := flaggedCount - decision.NewFinal%flaggedCount
		decision.NewFinal += roundUp
		decision.Delta += roundUp
	}
	return decision, nil
}

// Share splits an account report delta across its flagged posts. The last
// restored post carries the remainder so the shares sum to delta.
func Share(delta, flaggedCount, restoredBefore int) int {
	if flaggedCount <= 1 {
		return delta
	}
	share := delta / flaggedCount
	if restoredBefore+1 >= flaggedCount {
		return delta - share*(flaggedCount-1)
	}
	return share
}
