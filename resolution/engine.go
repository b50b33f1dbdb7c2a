// Package resolution derives the pending-resolution sub-state of an incident and the
// controls a viewer is offered for it.
package resolution

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/incident"
	"github.com/linesmerrill/lcm-policing/models"
)

// Chip texts
const (
	ChipPending  = "Pending Resolution"
	ChipResolved = "Resolved"
)

// Engine reads resolution state through the provider's gateway
type Engine struct {
	Gateways gateway.Provider
}

// NewEngine returns an Engine bound to p
func NewEngine(p gateway.Provider) *Engine {
	return &Engine{Gateways: p}
}

// LoadState fetches the resolution snapshot for the incident as seen by viewer. An
// incident without any resolution yields an empty state, not an error.
func (e *Engine) LoadState(ctx context.Context, id models.ID, viewer string) (*models.ResolutionState, error) {
	g := gateway.Current(e.Gateways)
	if g == nil {
		return nil, &models.Error{Kind: models.KindInitialization, Message: "Backend not initialized. Try reloading the page."}
	}

	args := gateway.Args{"p_incident_id": id, "p_user_id": nil}
	if viewer != "" {
		args["p_user_id"] = viewer
	}
	var raw json.RawMessage
	if err := g.Call(ctx, "get_incident_resolution_state", args, &raw); err != nil {
		zap.S().Warnw("get_incident_resolution_state failed", "incident", id.String(), "error", err)
		return nil, err
	}

	state := &models.ResolutionState{}
	if _, err := gateway.DecodeRow(raw, state); err != nil {
		return nil, &models.Error{Kind: models.KindRemote, Message: "unexpected resolution state", Err: err}
	}
	if state.Resolution != nil && state.Resolution.Status == "" && state.Resolution.ID.IsZero() {
		state.Resolution = nil
	}
	return state, nil
}

// Controls is what the detail view offers a particular viewer
type Controls struct {
	ShowVerdicts               bool               `json:"showVerdicts"`
	CanResolve                 bool               `json:"canResolve"`
	CanAcceptWithoutResolution bool               `json:"canAcceptWithoutResolution"`
	CanVote                    bool               `json:"canVote"`
	ViewerVote                 models.Vote        `json:"viewerVote,omitempty"`
	ConfirmCount               int                `json:"confirmCount"`
	DeclineCount               int                `json:"declineCount"`
	RequiredConfirms           int                `json:"requiredConfirms"`
	ThresholdMet               bool               `json:"thresholdMet"`
	Chip                       string             `json:"chip,omitempty"`
	Resolution                 *models.Resolution `json:"resolution,omitempty"`
}

// Derive computes the controls for viewer. The reported party never sees verdict
// controls; everyone else may vote on a pending resolution. The viewer's existing
// vote comes from the snapshot only.
func Derive(d *incident.DetailView, state *models.ResolutionState, viewer string) Controls {
	if state == nil {
		state = &models.ResolutionState{}
	}
	reported := d.IsReportedParty(viewer)
	pending := state.Resolution.IsPending()

	c := Controls{
		ConfirmCount:     state.ConfirmCount,
		DeclineCount:     state.DeclineCount,
		RequiredConfirms: models.RequiredConfirms(d.Community),
		ViewerVote:       state.UserVote,
		Resolution:       state.Resolution,
	}
	c.ThresholdMet = c.ConfirmCount >= c.RequiredConfirms

	switch {
	case reported:
		c.CanResolve = !d.Closed && !pending
		c.CanAcceptWithoutResolution = c.CanResolve
	case viewer != "":
		c.ShowVerdicts = !d.Closed
		c.CanVote = pending && !d.Closed
	}

	switch {
	case pending:
		c.Chip = ChipPending
	case d.Resolved || (state.Resolution != nil && state.Resolution.Status == models.ResolutionVerified):
		c.Chip = ChipResolved
	}
	return c
}

// Title labels the resolution box by status.
func Title(r *models.Resolution) string {
	if r == nil {
		return ""
	}
	switch r.Status {
	case models.ResolutionPending:
		return "Resolution (pending review)"
	case models.ResolutionVerified:
		return "Resolution (verified)"
	case models.ResolutionRejected:
		return "Resolution (rejected)"
	}
	return "Resolution"
}

// ValidateProposal trims text and checks its length in characters.
func ValidateProposal(text string) (string, error) {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n < models.ResolutionMinLength {
		return "", models.NewValidationError("Please add a bit more detail about how you resolved it.")
	}
	if n > models.ResolutionMaxLength {
		return "", models.NewValidationError("Resolution is too long (max 600 chars).")
	}
	return text, nil
}
