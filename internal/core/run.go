package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
)

var transitions = map[constants.RunState][]constants.RunState{
	constants.RunPending:             {constants.RunStructuredAttempted, constants.RunFailed},
	constants.RunStructuredAttempted: {constants.RunOCRAttempted, constants.RunSucceeded, constants.RunFailed},
	constants.RunOCRAttempted:        {constants.RunSucceeded, constants.RunFailed},
}

// Run tracks one pipeline invocation for a document. It is owned by a single
// goroutine.
type Run struct {
	ID          uuid.UUID
	ReferenceID string
	StartedAt   time.Time

	state   constants.RunState
	history []constants.RunState
}

func newRun(referenceID string, now time.Time) *Run {
	return &Run{
		ID:          uuid.New(),
		ReferenceID: referenceID,
		StartedAt:   now,
		state:       constants.RunPending,
		history:     []constants.RunState{constants.RunPending},
	}
}

// State returns the current state.
func (r *Run) State() constants.RunState { return r.state }

// History returns every state the run has been in, oldest first.
func (r *Run) History() []constants.RunState {
	return append([]constants.RunState(nil), r.history...)
}

// Transition moves the run forward. Terminal states are final.
func (r *Run) Transition(to constants.RunState) error {
	for _, allowed := range transitions[r.state] {
		if allowed == to {
			r.state = to
			r.history = append(r.history, to)
			return nil
		}
	}
	return fmt.Errorf("%w: run %s: invalid transition %s -> %s", common.ErrInternal, r.ID, r.state, to)
}

// advanceTo walks through skipped intermediate states, so a run whose
// structured step did not apply still records STRUCTURED_ATTEMPTED.
func (r *Run) advanceTo(to constants.RunState) error {
	if r.state == to {
		return nil
	}
	if r.state == constants.RunPending && to != constants.RunStructuredAttempted && to != constants.RunFailed {
		if err := r.Transition(constants.RunStructuredAttempted); err != nil {
			return err
		}
	}
	return r.Transition(to)
}
