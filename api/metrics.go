package api

import (
	"context"
	"sort"
	"sync"
	"time"
)

// RequestTrace tracks timing for a single request
type RequestTrace struct {
	RequestID     string            `json:"requestId"`
	Method        string            `json:"method"`
	Route         string            `json:"route"`
	Status        int               `json:"status"`
	StartTime     time.Time         `json:"startTime"`
	TotalDuration time.Duration     `json:"totalDuration"`
	RemoteCalls   []RemoteCallTrace `json:"remoteCalls"`
	RemoteTime    time.Duration     `json:"remoteTime"`

	mu sync.Mutex
}

// RemoteCallTrace tracks a single backend call made while serving a request
type RemoteCallTrace struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

func (t *RequestTrace) addRemoteCall(c RemoteCallTrace) {
	t.mu.Lock()
	t.RemoteCalls = append(t.RemoteCalls, c)
	t.RemoteTime += c.Duration
	t.mu.Unlock()
}

func (t *RequestTrace) remoteCallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.RemoteCalls)
}

// RouteMetrics aggregates metrics for a specific route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Route       string        `json:"route"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MaxTime     time.Duration `json:"maxTime"`
	RemoteCalls int64         `json:"remoteCalls"`
	RemoteTime  time.Duration `json:"remoteTime"`
	LastRequest time.Time     `json:"lastRequest"`
}

// MetricsSummary is the aggregate served on the metrics endpoint
type MetricsSummary struct {
	Since         time.Time      `json:"since"`
	TotalRequests int64          `json:"totalRequests"`
	TotalErrors   int64          `json:"totalErrors"`
	Routes        []RouteMetrics `json:"routes"`
}

// MetricsCollector aggregates request traces per route
type MetricsCollector struct {
	mu            sync.RWMutex
	since         time.Time
	routes        map[string]*RouteMetrics
	totalRequests int64
	totalErrors   int64
}

// NewMetricsCollector returns an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{since: time.Now(), routes: make(map[string]*RouteMetrics)}
}

var (
	globalMetrics     *MetricsCollector
	globalMetricsOnce sync.Once
)

// GetMetrics returns the process-wide collector
func GetMetrics() *MetricsCollector {
	globalMetricsOnce.Do(func() { globalMetrics = NewMetricsCollector() })
	return globalMetrics
}

// RecordTrace folds a finished request into its route's aggregate.
func (mc *MetricsCollector) RecordTrace(t *RequestTrace) {
	t.mu.Lock()
	calls, remote := int64(len(t.RemoteCalls)), t.RemoteTime
	t.mu.Unlock()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := t.Method + " " + t.Route
	rm, ok := mc.routes[key]
	if !ok {
		rm = &RouteMetrics{Method: t.Method, Route: t.Route}
		mc.routes[key] = rm
	}
	rm.Count++
	rm.TotalTime += t.TotalDuration
	rm.AvgTime = rm.TotalTime / time.Duration(rm.Count)
	if t.TotalDuration > rm.MaxTime {
		rm.MaxTime = t.TotalDuration
	}
	rm.RemoteCalls += calls
	rm.RemoteTime += remote
	rm.LastRequest = t.StartTime

	mc.totalRequests++
	if t.Status >= 400 {
		rm.ErrorCount++
		mc.totalErrors++
	}
}

// Summary returns a copy of the aggregates, busiest route first.
func (mc *MetricsCollector) Summary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	s := MetricsSummary{Since: mc.since, TotalRequests: mc.totalRequests, TotalErrors: mc.totalErrors}
	for _, rm := range mc.routes {
		s.Routes = append(s.Routes, *rm)
	}
	sort.Slice(s.Routes, func(i, j int) bool {
		if s.Routes[i].Count != s.Routes[j].Count {
			return s.Routes[i].Count > s.Routes[j].Count
		}
		return s.Routes[i].Method+s.Routes[i].Route < s.Routes[j].Method+s.Routes[j].Route
	})
	return s
}

type traceKey struct{}

// WithRequestTrace attaches a request trace to ctx
func WithRequestTrace(ctx context.Context, t *RequestTrace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// TraceFrom returns the request trace in ctx, or nil.
func TraceFrom(ctx context.Context) *RequestTrace {
	t, _ := ctx.Value(traceKey{}).(*RequestTrace)
	return t
}

// RecordRemoteCall adds a backend call to the trace of the request ctx belongs to. It
// has the gateway observer's signature and is a no-op outside a request.
func RecordRemoteCall(ctx context.Context, name string, d time.Duration, err error) {
	t := TraceFrom(ctx)
	if t == nil {
		return
	}
	c := RemoteCallTrace{Name: name, Duration: d}
	if err != nil {
		c.Error = err.Error()
	}
	t.addRemoteCall(c)
}
