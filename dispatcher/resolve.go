package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/models"
	"github.com/linesmerrill/lcm-policing/resolution"
)

// Compose opens the resolution composer. Only the reported party of an open incident
// without a pending resolution may compose.
func (s *Session) Compose() (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return s.outcomeLocked(), models.ErrActionInFlight
	}
	if s.state != StateViewing && s.state != StateResolveComposing {
		err := models.NewValidationError("That action is not available right now.")
		return s.outcomeLocked(), err
	}
	if !s.controls.CanResolve {
		err := models.NewValidationError("You can't propose a resolution for this incident.")
		return s.outcomeLocked(), err
	}
	s.state = StateResolveComposing
	return s.outcomeLocked(), nil
}

// CancelCompose closes the composer without sending anything.
func (s *Session) CancelCompose() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateResolveComposing {
		s.state = StateViewing
	}
	return s.outcomeLocked()
}

// ProposeResolution submits text as the reported party's resolution. The text must be
// 10 to 600 characters after trimming. Failures carry an Alert with every diagnostic
// field of the backend error besides the toast, and leave the composer open for another
// try.
func (s *Session) ProposeResolution(ctx context.Context, text string) (*Outcome, error) {
	text, err := resolution.ValidateProposal(text)
	if err != nil {
		return s.failure(err, "", false), err
	}
	if !s.Snapshot().Controls.CanResolve {
		err := models.NewValidationError("You can't propose a resolution for this incident.")
		return s.failure(err, "", false), err
	}
	if err := s.begin([]State{StateViewing, StateResolveComposing}, StateSubmittingResolution); err != nil {
		return s.failure(err, "", false), err
	}

	g, err := s.d.gateway()
	if err != nil {
		s.end(StateResolveComposing)
		return s.failure(err, "", true), err
	}

	// predicted state, rolled back on failure and replaced by the re-fetch on success
	predicted := &models.ResolutionState{Resolution: &models.Resolution{
		Status:    models.ResolutionPending,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}}
	s.mu.Lock()
	before := s.res
	s.res = predicted
	s.controls = resolution.Derive(s.detail, s.res, s.viewer)
	s.mu.Unlock()

	err = gateway.CallWithTimeout(ctx, g, s.d.ResolutionTimeout, "submit_incident_resolution", gateway.Args{
		"p_incident_id": s.id,
		"p_action":      string(models.ActionPropose),
		"p_text":        text,
		"p_reason":      nil,
	}, nil)
	if err != nil {
		zap.S().Errorw("resolution proposal failed", "incident", s.id.String(), "error", err)
		s.mu.Lock()
		s.res = before
		s.controls = resolution.Derive(s.detail, s.res, s.viewer)
		s.mu.Unlock()
		s.end(StateResolveComposing)
		return s.failure(err, "Could not submit resolution.", true), err
	}

	// a failed re-fetch keeps the predicted state
	s.apply(s.loadState(ctx))
	s.end(StateViewing)

	o := s.Snapshot()
	o.Toast = "Resolution submitted for community confirmation."
	return o, nil
}

// Vote casts the viewer's CONFIRM or DECLINE on the pending resolution. Only one vote
// may be in flight per view; a second one fails with ErrActionInFlight without a remote
// call. The resolution state is fetched again afterwards whatever the outcome.
func (s *Session) Vote(ctx context.Context, vote models.Vote, reason string) (*Outcome, error) {
	if vote != models.VoteConfirm && vote != models.VoteDecline {
		err := models.NewValidationError(fmt.Sprintf("unknown vote %q", vote))
		return s.failure(err, "", false), err
	}
	if !s.Snapshot().Controls.CanVote {
		err := models.NewValidationError("There is no pending resolution to vote on.")
		return s.failure(err, "", false), err
	}
	if err := s.begin([]State{StateViewing}, StateSubmittingVote); err != nil {
		return s.failure(err, "", false), err
	}

	g, err := s.d.gateway()
	if err != nil {
		s.end(StateViewing)
		return s.failure(err, "", false), err
	}

	var pReason interface{}
	switch vote {
	case models.VoteConfirm:
		pReason = "confirmed"
	case models.VoteDecline:
		if r := strings.TrimSpace(reason); r != "" {
			pReason = r
		}
	}

	var raw json.RawMessage
	callErr := gateway.CallWithTimeout(ctx, g, s.d.ResolutionTimeout, "submit_incident_resolution", gateway.Args{
		"p_incident_id": s.id,
		"p_action":      string(vote.Action()),
		"p_text":        nil,
		"p_reason":      pReason,
	}, &raw)

	s.apply(s.loadState(ctx))

	if callErr != nil {
		zap.S().Errorw("resolution vote failed", "incident", s.id.String(), "vote", vote, "error", callErr)
		s.end(StateViewing)
		fallback := "Could not confirm."
		if vote == models.VoteDecline {
			fallback = "Could not decline."
		}
		return s.failure(callErr, fallback, false), callErr
	}

	var result models.VerdictResult
	if _, err := gateway.DecodeRow(raw, &result); err != nil {
		// the payload is backend-defined; only a recognizable closed row matters
		result = models.VerdictResult{}
	}
	if result.Closed {
		s.end(StateClosed)
		o := s.Snapshot()
		o.Toast = fmt.Sprintf("Incident closed (%s).", result.Status)
		o.Queue = s.d.refreshQueue(ctx, s.viewer, s.cache)
		return o, nil
	}

	s.end(StateViewing)
	o := s.Snapshot()
	o.Toast = "Resolution vote recorded."
	if vote == models.VoteConfirm {
		o.Toast = "Resolution confirmed."
	}
	return o, nil
}

// AcceptWithoutResolution is the reported party's acknowledgment. It only dismisses the
// view; nothing is sent to the backend.
func (s *Session) AcceptWithoutResolution() (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return s.outcomeLocked(), models.ErrActionInFlight
	}
	if !s.controls.CanAcceptWithoutResolution {
		return s.outcomeLocked(), models.NewValidationError("That action is not available right now.")
	}
	s.state = StateClosed
	return s.outcomeLocked(), nil
}
