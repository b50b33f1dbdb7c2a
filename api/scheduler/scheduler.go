package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/gateway"
)

// DefaultInterval is how often the bell is refreshed
const DefaultInterval = 30 * time.Second

// pollTimeout bounds a single bell refresh
const pollTimeout = 10 * time.Second

// Subscriber is a signed-in user waiting for bell updates, with the token the poll
// runs under.
type Subscriber struct {
	UserID string
	Token  string
}

// Notifier delivers bell counts to connected users
type Notifier interface {
	Subscribers() []Subscriber
	PushBell(userID string, count int)
}

// Scheduler refreshes the notification bell of every connected user on a fixed
// interval. Each refresh is fire-and-forget: a slow backend never delays the next
// tick, and overlapping refreshes for the same user are allowed.
type Scheduler struct {
	cron     *cron.Cron
	Gateways gateway.Provider
	Hub      Notifier
	Interval time.Duration
	Kind     string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler creates a new scheduler instance. An empty kind counts every
// notification kind.
func NewScheduler(p gateway.Provider, hub Notifier, interval time.Duration, kind string) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		Gateways: p,
		Hub:      hub,
		Interval: interval,
		Kind:     kind,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.Interval), s.pollAll); err != nil {
		zap.S().Errorw("failed to register bell job", "error", err)
		return err
	}
	s.cron.Start()
	zap.S().Infow("bell scheduler started", "interval", s.Interval)
	return nil
}

// Stop gracefully stops the scheduler and waits for refreshes still in flight. Go does
// nothing once Stop has begun.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	zap.S().Info("bell scheduler stopped")
}

// Run starts the scheduler and stops it once ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Scheduler) pollAll() {
	for _, sub := range s.Hub.Subscribers() {
		s.Go(sub)
	}
}

// Go refreshes one subscriber's bell in the background.
func (s *Scheduler) Go(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Poll(s.ctx, sub)
	}()
}

// Poll asks the backend for the subscriber's unread count and pushes it. A failed
// lookup leaves the bell as it was.
func (s *Scheduler) Poll(ctx context.Context, sub Subscriber) {
	g := gateway.Current(s.Gateways)
	if g == nil {
		return
	}
	ctx, cancel := context.WithTimeout(gateway.WithAccessToken(ctx, sub.Token), pollTimeout)
	defer cancel()

	var kind interface{}
	if s.Kind != "" {
		kind = s.Kind
	}
	var raw json.RawMessage
	err := g.Call(ctx, "get_unread_notifications_count", gateway.Args{"p_user": sub.UserID, "p_kind": kind}, &raw)
	if err != nil {
		zap.S().Warnw("bell refresh failed", "user", sub.UserID, "error", err)
		return
	}
	s.Hub.PushBell(sub.UserID, Count(raw))
}

// Count reads the unread count from the backend's answer. Anything but a finite number
// counts as zero.
func Count(raw json.RawMessage) int {
	var n *float64
	if err := json.Unmarshal(raw, &n); err != nil || n == nil {
		return 0
	}
	if math.IsNaN(*n) || math.IsInf(*n, 0) || *n < 0 {
		return 0
	}
	return int(*n)
}
