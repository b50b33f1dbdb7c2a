package dispatcher

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/linesmerrill/lcm-policing/models"
)

type sessionKey struct {
	device   string
	incident string
}

// Registry keeps the open views of every device
type Registry struct {
	mu        sync.Mutex
	sessions  map[sessionKey]*Session
	reporters map[string]*Reporter
	opening   singleflight.Group
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{sessions: map[sessionKey]*Session{}, reporters: map[string]*Reporter{}}
}

// Get returns the device's open view of id, if any.
func (r *Registry) Get(device string, id models.ID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionKey{device, id.String()}]
	return s, ok
}

// OpenFunc loads a fresh view for the registry to keep.
type OpenFunc func() (*Session, error)

type opened struct {
	s     *Session
	fresh bool
}

// GetOrOpen returns the device's open view of id for viewer, calling open when there is
// none yet, when it was closed, or when it belongs to another viewer. Concurrent callers
// for the same view share one open call and one Session. A view with an action in
// flight is never replaced. fresh reports whether the returned view was just opened.
func (r *Registry) GetOrOpen(device string, id models.ID, viewer string, open OpenFunc) (s *Session, fresh bool, err error) {
	key := device + "\x00" + id.String() + "\x00" + viewer
	v, err, _ := r.opening.Do(key, func() (interface{}, error) {
		if cur, ok := r.Get(device, id); ok {
			if cur.Viewer() == viewer && cur.State() != StateClosed {
				return opened{s: cur}, nil
			}
			if cur.Busy() {
				return nil, models.ErrActionInFlight
			}
		}
		s, err := open()
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		k := sessionKey{device, s.ID().String()}
		if cur, ok := r.sessions[k]; ok && cur != s && cur.Busy() {
			return nil, models.ErrActionInFlight
		}
		r.sessions[k] = s
		return opened{s: s, fresh: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	o := v.(opened)
	return o.s, o.fresh, nil
}

// Forget drops the device's view of id.
func (r *Registry) Forget(device string, id models.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey{device, id.String()})
}

// Reporter returns the device's reporter, creating it with d on first use.
func (r *Registry) Reporter(device string, d *Dispatcher) *Reporter {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reporters[device]
	if !ok {
		rep = NewReporter(d)
		r.reporters[device] = rep
	}
	return rep
}
