package gateway

import "sync"

// Provider hands out the gateway once it exists. Gateway returns nil until then.
type Provider interface {
	Gateway() Gateway
}

// Lazy is a Provider whose gateway is installed after construction, for example once
// the backend has answered a first ping.
type Lazy struct {
	mu sync.RWMutex
	g  Gateway
}

// Set installs the gateway.
func (l *Lazy) Set(g Gateway) {
	l.mu.Lock()
	l.g = g
	l.mu.Unlock()
}

// Gateway returns the installed gateway or nil.
func (l *Lazy) Gateway() Gateway {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.g
}

type static struct{ g Gateway }

func (s static) Gateway() Gateway { return s.g }

// Static returns a Provider that always hands out g.
func Static(g Gateway) Provider { return static{g: g} }

// Current returns the gateway of p, or nil while p has none.
func Current(p Provider) Gateway {
	if p == nil {
		return nil
	}
	return p.Gateway()
}
