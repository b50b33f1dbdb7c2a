package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/models"
)

// FalseReasonMinLength is the shortest reason accepted with a FALSE verdict.
const FalseReasonMinLength = 5

var verdictToasts = map[models.Verdict]string{
	models.VerdictTrue:   "Verified. Thank you!",
	models.VerdictIgnore: "Ignored. It won't show here again on this device.",
	models.VerdictFalse:  "Marked as FALSE. Thank you!",
}

var verdictFailures = map[models.Verdict]string{
	models.VerdictTrue:   "Could not verify.",
	models.VerdictIgnore: "Could not ignore.",
	models.VerdictFalse:  "Could not submit FALSE.",
}

// SubmitVerdict sends the viewer's verdict. A FALSE verdict needs a reason of at least
// FalseReasonMinLength characters, checked before anything is sent. On success the view
// closes and the queue is refreshed; IGNORE and FALSE are also recorded in the device's
// decision cache. Verdicts carry no client timeout of their own.
func (s *Session) SubmitVerdict(ctx context.Context, v models.Verdict, reason string) (*Outcome, error) {
	reason = strings.TrimSpace(reason)
	var pReason interface{}
	if v == models.VerdictFalse {
		if utf8.RuneCountInString(reason) < FalseReasonMinLength {
			err := models.NewValidationError("Add a brief reason for FALSE.")
			return s.failure(err, "", false), err
		}
		pReason = reason
	}
	if _, ok := verdictToasts[v]; !ok {
		err := models.NewValidationError(fmt.Sprintf("unknown verdict %q", v))
		return s.failure(err, "", false), err
	}
	if !s.Snapshot().Controls.ShowVerdicts {
		err := models.NewValidationError("You can't submit a verdict on this incident.")
		return s.failure(err, "", false), err
	}
	if err := s.begin([]State{StateViewing}, StateSubmitting); err != nil {
		return s.failure(err, "", false), err
	}

	g, err := s.d.gateway()
	if err != nil {
		s.end(StateViewing)
		return s.failure(err, "", false), err
	}

	var raw json.RawMessage
	err = g.Call(ctx, "submit_incident_verdict", gateway.Args{
		"p_incident_id": s.id,
		"p_verdict":     string(v),
		"p_reason":      pReason,
	}, &raw)
	if err != nil {
		zap.S().Errorw("submit_incident_verdict failed", "incident", s.id.String(), "verdict", v, "error", err)
		s.end(StateViewing)
		return s.failure(err, verdictFailures[v], false), err
	}

	var result models.VerdictResult
	if _, err := gateway.DecodeRow(raw, &result); err != nil {
		zap.S().Warnw("unreadable verdict result", "incident", s.id.String(), "error", err)
	}

	if kind, ok := models.DecisionFor(v); ok && s.cache != nil {
		if err := s.cache.Suppress(ctx, s.id, kind); err != nil {
			zap.S().Errorw("failed to record local decision", "incident", s.id.String(), "kind", kind, "error", err)
		}
	}

	toast := verdictToasts[v]
	if result.Closed {
		toast = fmt.Sprintf("Incident closed (%s).", result.Status)
		s.mu.Lock()
		closed := *s.detail
		if result.Status != "" {
			closed.Status = result.Status
		}
		closed.Closed = true
		s.detail = &closed
		s.mu.Unlock()
	}
	s.end(StateClosed)

	o := s.Snapshot()
	o.Toast = toast
	o.Queue = s.d.refreshQueue(ctx, s.viewer, s.cache)
	return o, nil
}
