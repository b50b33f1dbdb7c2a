// Package dispatcher runs the actions of an open incident view: verdicts, resolution
// proposals and resolution votes. It interprets each result and decides whether the
// view closes and the queue is refreshed.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/incident"
	"github.com/linesmerrill/lcm-policing/models"
	"github.com/linesmerrill/lcm-policing/queue"
	"github.com/linesmerrill/lcm-policing/resolution"
)

// State of an incident view
type State string

// States
const (
	StateViewing              State = "VIEWING"
	StateSubmitting           State = "SUBMITTING"
	StateResolveComposing     State = "RESOLVE_COMPOSING"
	StateSubmittingResolution State = "SUBMITTING_RESOLUTION"
	StateSubmittingVote       State = "SUBMITTING_VOTE"
	StateClosed               State = "CLOSED"
	StateError                State = "ERROR"
)

// DetailLoader loads one incident
type DetailLoader interface {
	LoadDetail(ctx context.Context, id models.ID) (*incident.DetailView, error)
}

// StateLoader loads the resolution snapshot of an incident
type StateLoader interface {
	LoadState(ctx context.Context, id models.ID, viewer string) (*models.ResolutionState, error)
}

// QueueRefresher rebuilds the viewer's Verify Queue
type QueueRefresher interface {
	Refresh(ctx context.Context, userID string, s queue.Suppressor) (*queue.View, error)
}

// DecisionRecorder is the device's decision cache
type DecisionRecorder interface {
	queue.Suppressor
	Suppress(ctx context.Context, id models.ID, kind models.DecisionKind) error
}

// Outcome is what the view shows after an action. On failure State is StateError and
// Toast carries the message; the session itself is back in the state it started from.
// Composing is set while the resolution composer is open.
type Outcome struct {
	State     State                `json:"state"`
	Toast     string               `json:"toast,omitempty"`
	IsError   bool                 `json:"isError"`
	Alert     string               `json:"alert,omitempty"`
	Closed    bool                 `json:"closed"`
	Composing bool                 `json:"composing"`
	Detail    *incident.DetailView `json:"detail,omitempty"`
	Controls  resolution.Controls  `json:"controls"`
	Queue     *queue.View          `json:"queue,omitempty"`
}

// Dispatcher holds the collaborators shared by every incident view
type Dispatcher struct {
	Gateways          gateway.Provider
	Details           DetailLoader
	Resolutions       StateLoader
	Queue             QueueRefresher
	ResolutionTimeout time.Duration
}

// New wires a Dispatcher from the provider using the default components.
func New(p gateway.Provider, queueLimit int, resolutionTimeout time.Duration) *Dispatcher {
	if resolutionTimeout <= 0 {
		resolutionTimeout = gateway.ResolutionTimeout
	}
	return &Dispatcher{
		Gateways:          p,
		Details:           incident.NewAggregator(p),
		Resolutions:       resolution.NewEngine(p),
		Queue:             queue.New(p, queueLimit),
		ResolutionTimeout: resolutionTimeout,
	}
}

func (d *Dispatcher) gateway() (gateway.Gateway, error) {
	g := gateway.Current(d.Gateways)
	if g == nil {
		return nil, &models.Error{Kind: models.KindInitialization, Message: "Backend not initialized. Try reloading the page."}
	}
	return g, nil
}

func (d *Dispatcher) refreshQueue(ctx context.Context, viewer string, s queue.Suppressor) *queue.View {
	v, err := d.Queue.Refresh(ctx, viewer, s)
	if err != nil {
		zap.S().Warnw("failed to refresh verify queue", "user", viewer, "error", err)
		return nil
	}
	return v
}

// Session is one open incident detail view
type Session struct {
	d      *Dispatcher
	cache  DecisionRecorder
	viewer string
	id     models.ID

	mu       sync.Mutex
	state    State
	inFlight bool
	detail   *incident.DetailView
	res      *models.ResolutionState
	controls resolution.Controls
}

// Open loads the incident and its resolution state for viewer. A failing resolution
// lookup does not prevent the view from opening; it shows no resolution until the next
// reload.
func (d *Dispatcher) Open(ctx context.Context, id models.ID, viewer string, cache DecisionRecorder) (*Session, error) {
	detail, err := d.Details.LoadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	s := &Session{d: d, cache: cache, viewer: viewer, id: detail.ID, state: StateViewing, detail: detail}
	s.apply(s.loadState(ctx))
	return s, nil
}

// ID of the incident the session shows.
func (s *Session) ID() models.ID { return s.id }

// Viewer the session was opened for.
func (s *Session) Viewer() string { return s.viewer }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether an action of the session is waiting on the backend.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Snapshot returns the current view without contacting the backend.
func (s *Session) Snapshot() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomeLocked()
}

func (s *Session) outcomeLocked() *Outcome {
	return &Outcome{
		State:     s.state,
		Closed:    s.state == StateClosed,
		Composing: s.state == StateResolveComposing,
		Detail:    s.detail,
		Controls:  s.controls,
	}
}

// Reload fetches detail and resolution state again. The view keeps its state, so an
// open composer stays open unless the new state no longer allows a proposal.
func (s *Session) Reload(ctx context.Context) (*Outcome, error) {
	prior, err := s.claim()
	if err != nil {
		return nil, err
	}
	detail, err := s.d.Details.LoadDetail(ctx, s.id)
	if err != nil {
		s.end(prior)
		return s.failure(err, "Failed to load incident.", false), err
	}
	res := s.loadState(ctx)

	s.mu.Lock()
	s.detail = detail
	s.mu.Unlock()
	s.apply(res)

	if prior == StateResolveComposing && !s.Snapshot().Controls.CanResolve {
		prior = StateViewing
	}
	s.end(prior)
	return s.Snapshot(), nil
}

// Close dismisses the view.
func (s *Session) Close() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	return s.outcomeLocked()
}

func (s *Session) loadState(ctx context.Context) *models.ResolutionState {
	res, err := s.d.Resolutions.LoadState(ctx, s.id, s.viewer)
	if err != nil {
		zap.S().Warnw("resolution state unavailable", "incident", s.id.String(), "error", err)
		return nil
	}
	return res
}

func (s *Session) apply(res *models.ResolutionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res != nil {
		s.res = res
	}
	s.controls = resolution.Derive(s.detail, s.res, s.viewer)
}

// begin claims the session for one remote action. allowed lists the states the action
// may start from; nil means any state except closed.
func (s *Session) begin(allowed []State, next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return models.ErrActionInFlight
	}
	if s.state == StateClosed {
		return models.NewValidationError("This incident view is closed.")
	}
	if allowed != nil {
		ok := false
		for _, st := range allowed {
			if st == s.state {
				ok = true
				break
			}
		}
		if !ok {
			return models.NewValidationError("That action is not available right now.")
		}
	}
	s.inFlight = true
	s.state = next
	return nil
}

// claim marks the session busy without changing its state and returns that state.
func (s *Session) claim() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return "", models.ErrActionInFlight
	}
	if s.state == StateClosed {
		return "", models.NewValidationError("This incident view is closed.")
	}
	s.inFlight = true
	return s.state, nil
}

// end releases the session. A view closed while the action ran stays closed.
func (s *Session) end(next State) {
	s.mu.Lock()
	s.inFlight = false
	if s.state != StateClosed {
		s.state = next
	}
	s.mu.Unlock()
}

func (s *Session) failure(err error, fallback string, alert bool) *Outcome {
	o := s.Snapshot()
	o.State = StateError
	o.IsError = true
	o.Toast = models.UserMessage(err, fallback)
	if alert {
		o.Alert = models.Describe(err)
	}
	return o
}
