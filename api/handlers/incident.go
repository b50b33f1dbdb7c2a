package handlers

import (
	"context"
	"net/http"

	"github.com/linesmerrill/lcm-policing/decisions"
	"github.com/linesmerrill/lcm-policing/dispatcher"
	"github.com/linesmerrill/lcm-policing/models"
)

// Incident handles the incident detail view and the actions taken from it
type Incident struct {
	Dispatcher *dispatcher.Dispatcher
	Decisions  *decisions.Registry
	Sessions   *dispatcher.Registry
}

// session returns the caller's open view of the incident, opening it when there is
// none yet, when it was closed, or when it was opened for a different viewer.
func (i Incident) session(ctx context.Context, device, viewer string, id models.ID) (*dispatcher.Session, bool, error) {
	if id.IsZero() {
		return nil, false, models.NewValidationError("Missing incident id.")
	}
	return i.Sessions.GetOrOpen(device, id, viewer, func() (*dispatcher.Session, error) {
		return openSession(ctx, i.Dispatcher, i.Decisions, device, viewer, id)
	})
}

func openSession(ctx context.Context, d *dispatcher.Dispatcher, reg *decisions.Registry, device, viewer string, id models.ID) (*dispatcher.Session, error) {
	cache, err := reg.ForDevice(ctx, device)
	if err != nil {
		return nil, err
	}
	return d.Open(ctx, id, viewer, cache)
}

// DetailHandler opens the incident view, or reloads it when the caller already has it open
func (i Incident) DetailHandler(w http.ResponseWriter, r *http.Request) {
	device, viewer := caller(r)
	s, opened, err := i.session(r.Context(), device, viewer, incidentID(r))
	if err != nil {
		writeError(w, err, "Failed to load incident.")
		return
	}
	if opened {
		writeOutcome(w, r, http.StatusOK, s.Snapshot())
		return
	}
	o, err := s.Reload(r.Context())
	writeResult(w, r, o, err, "Failed to load incident.")
}

// CloseHandler dismisses the caller's view of the incident
func (i Incident) CloseHandler(w http.ResponseWriter, r *http.Request) {
	device, _ := caller(r)
	id := incidentID(r)
	if s, ok := i.Sessions.Get(device, id); ok {
		s.Close()
		i.Sessions.Forget(device, id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerdictHandler submits TRUE, FALSE or IGNORE
func (i Incident) VerdictHandler(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r)
	if err != nil {
		writeError(w, models.NewValidationError("Invalid form."), "")
		return
	}
	v, ok := models.ParseVerdict(form.Get("verdict"))
	if !ok {
		writeError(w, models.NewValidationError("Unknown verdict."), "")
		return
	}

	device, viewer := caller(r)
	s, _, err := i.session(r.Context(), device, viewer, incidentID(r))
	if err != nil {
		writeError(w, err, "Failed to load incident.")
		return
	}
	o, err := s.SubmitVerdict(r.Context(), v, form.Get("reason"))
	writeResult(w, r, o, err, "Could not submit verdict.")
}

// ComposeHandler opens the resolution composer
func (i Incident) ComposeHandler(w http.ResponseWriter, r *http.Request) {
	device, viewer := caller(r)
	s, _, err := i.session(r.Context(), device, viewer, incidentID(r))
	if err != nil {
		writeError(w, err, "Failed to load incident.")
		return
	}
	o, err := s.Compose()
	writeResult(w, r, o, err, "Could not open the resolution form.")
}

// CancelComposeHandler discards the resolution composer
func (i Incident) CancelComposeHandler(w http.ResponseWriter, r *http.Request) {
	device, viewer := caller(r)
	s, _, err := i.session(r.Context(), device, viewer, incidentID(r))
	if err != nil {
		writeError(w, err, "Failed to load incident.")
		return
	}
	writeOutcome(w, r, http.StatusOK, s.CancelCompose())
}

// ResolutionHandler proposes a resolution on behalf of the reported party
func (i Incident) ResolutionHandler(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r)
	if err != nil {
		writeError(w, models.NewValidationError("Invalid form."), "")
		return
	}
	device, viewer := caller(r)
	s, _, err := i.session(r.Context(), device, viewer, incidentID(r))
	if err != nil {
		writeError(w, err, "Failed to load incident.")
		return
	}
	o, err := s.ProposeResolution(r.Context(), form.Get("text"))
	writeResult(w, r, o, err, "Could not submit resolution.")
}

// VoteHandler records a CONFIRM or DECLINE on the pending resolution
func (i Incident) VoteHandler(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r)
	if err != nil {
		writeError(w, models.NewValidationError("Invalid form."), "")
		return
	}
	vote, ok := models.ParseVote(form.Get("vote"))
	if !ok {
		writeError(w, models.NewValidationError("Unknown vote."), "")
		return
	}
	device, viewer := caller(r)
	s, _, err := i.session(r.Context(), device, viewer, incidentID(r))
	if err != nil {
		writeError(w, err, "Failed to load incident.")
		return
	}
	o, err := s.Vote(r.Context(), vote, form.Get("reason"))
	writeResult(w, r, o, err, "Could not record vote.")
}

// AcceptHandler lets the reported party accept the incident without a resolution
func (i Incident) AcceptHandler(w http.ResponseWriter, r *http.Request) {
	device, viewer := caller(r)
	s, _, err := i.session(r.Context(), device, viewer, incidentID(r))
	if err != nil {
		writeError(w, err, "Failed to load incident.")
		return
	}
	o, err := s.AcceptWithoutResolution()
	writeResult(w, r, o, err, "Could not accept.")
}
