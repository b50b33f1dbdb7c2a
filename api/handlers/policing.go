package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/api"
	"github.com/linesmerrill/lcm-policing/config"
	"github.com/linesmerrill/lcm-policing/decisions"
	"github.com/linesmerrill/lcm-policing/dispatcher"
	"github.com/linesmerrill/lcm-policing/models"
	"github.com/linesmerrill/lcm-policing/queue"
	templates "github.com/linesmerrill/lcm-policing/templates/html"
)

// Policing serves the policing page and its Verify Queue
type Policing struct {
	Dispatcher *dispatcher.Dispatcher
	Decisions  *decisions.Registry
	Sessions   *dispatcher.Registry
}

// PageResponse is the JSON form of the policing page
type PageResponse struct {
	Queue   *queue.View         `json:"queue"`
	Outcome *dispatcher.Outcome `json:"outcome,omitempty"`
}

func (p Policing) queue(r *http.Request) (*queue.View, error) {
	device, viewer := caller(r)
	cache, err := p.Decisions.ForDevice(r.Context(), device)
	if err != nil {
		return nil, err
	}
	return p.Dispatcher.Queue.Refresh(r.Context(), viewer, cache)
}

// QueueHandler returns the caller's Verify Queue
func (p Policing) QueueHandler(w http.ResponseWriter, r *http.Request) {
	v, err := p.queue(r)
	if err != nil {
		writeError(w, err, "Could not load the Verify Queue.")
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, v)
		return
	}
	body, err := templates.RenderQueue(v)
	if err != nil {
		config.ErrorStatus("failed to render queue", http.StatusInternalServerError, w, err)
		return
	}
	writeHTML(w, http.StatusOK, body)
}

// DecisionsResponse lists the incidents hidden on the caller's device
type DecisionsResponse struct {
	Decisions []models.LocalDecision `json:"decisions"`
}

// DecisionsHandler returns the ignored and false-marked incidents this device keeps
// out of its Verify Queue
func (p Policing) DecisionsHandler(w http.ResponseWriter, r *http.Request) {
	device, _ := caller(r)
	cache, err := p.Decisions.ForDevice(r.Context(), device)
	if err != nil {
		writeError(w, err, "Could not load this device's decisions.")
		return
	}
	resp := DecisionsResponse{Decisions: cache.Snapshot()}
	if resp.Decisions == nil {
		resp.Decisions = []models.LocalDecision{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// linked opens the deep-linked incident, or refreshes the caller's open view of it. A
// view with an action in flight is shown as it is.
func (p Policing) linked(r *http.Request, id models.ID) *dispatcher.Outcome {
	device, viewer := caller(r)
	s, fresh, err := p.Sessions.GetOrOpen(device, id, viewer, func() (*dispatcher.Session, error) {
		return openSession(r.Context(), p.Dispatcher, p.Decisions, device, viewer, id)
	})
	if err != nil {
		zap.S().Warnw("failed to open linked incident", "incident", id.String(), "error", err)
		return &dispatcher.Outcome{State: dispatcher.StateError, IsError: true, Toast: models.UserMessage(err, "Failed to load incident.")}
	}
	if fresh {
		return s.Snapshot()
	}
	if o, err := s.Reload(r.Context()); err == nil {
		return o
	}
	return s.Snapshot()
}

// PageHandler renders the policing page. A notification deep link
// (?incident=<id>&src=notif) opens that incident's view on load.
func (p Policing) PageHandler(w http.ResponseWriter, r *http.Request) {
	var o *dispatcher.Outcome
	v, err := p.queue(r)
	if err != nil {
		zap.S().Warnw("failed to load verify queue", "error", err)
		o = &dispatcher.Outcome{State: dispatcher.StateError, IsError: true, Toast: models.UserMessage(err, "Could not load the Verify Queue.")}
	}

	if link, ok := api.ParseDeepLink(r.URL.Query()); ok {
		o = p.linked(r, link.IncidentID)
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, PageResponse{Queue: v, Outcome: o})
		return
	}
	body, err := templates.RenderPage(v, o)
	if err != nil {
		config.ErrorStatus("failed to render page", http.StatusInternalServerError, w, err)
		return
	}
	writeHTML(w, http.StatusOK, body)
}
