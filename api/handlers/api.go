package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/api"
	"github.com/linesmerrill/lcm-policing/api/scheduler"
	"github.com/linesmerrill/lcm-policing/config"
	"github.com/linesmerrill/lcm-policing/databases"
	"github.com/linesmerrill/lcm-policing/decisions"
	"github.com/linesmerrill/lcm-policing/dispatcher"
	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/models"
)

// backendRetryInterval is how long Connect waits between failed pings
const backendRetryInterval = 2 * time.Second

// App stores the router and the shared components, so it can be reused
type App struct {
	Router     *mux.Router
	Config     config.Config
	Gateways   *gateway.Lazy
	Client     *gateway.Client
	Decisions  *decisions.Registry
	Sessions   *dispatcher.Registry
	Dispatcher *dispatcher.Dispatcher
	Hub        *NotificationHub
	Scheduler  *scheduler.Scheduler
	Bell       BellPoller

	closeStorage databases.CloseFunc
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := api.New(a.Config.JWTSecret, a.Config.RequestTimeout)

	p := Policing{Dispatcher: a.Dispatcher, Decisions: a.Decisions, Sessions: a.Sessions}
	i := Incident{Dispatcher: a.Dispatcher, Decisions: a.Decisions, Sessions: a.Sessions}
	rep := Report{Dispatcher: a.Dispatcher, Decisions: a.Decisions, Sessions: a.Sessions}
	n := Notifications{Hub: a.Hub, Bell: a.Bell}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	r.HandleFunc("/metrics", metricsHandler).Methods("GET")

	r.HandleFunc("/policing", p.PageHandler).Methods("GET")
	r.HandleFunc("/policing/queue", p.QueueHandler).Methods("GET")
	r.HandleFunc("/policing/decisions", p.DecisionsHandler).Methods("GET")

	r.HandleFunc("/incidents/{id}", i.DetailHandler).Methods("GET")
	r.HandleFunc("/incidents/{id}", i.CloseHandler).Methods("DELETE")
	r.HandleFunc("/incidents/{id}/verdict", i.VerdictHandler).Methods("POST")
	r.HandleFunc("/incidents/{id}/compose", i.ComposeHandler).Methods("POST")
	r.HandleFunc("/incidents/{id}/compose", i.CancelComposeHandler).Methods("DELETE")
	r.HandleFunc("/incidents/{id}/compose/cancel", i.CancelComposeHandler).Methods("POST")
	r.HandleFunc("/incidents/{id}/resolution", i.ResolutionHandler).Methods("POST")
	r.HandleFunc("/incidents/{id}/resolution/vote", i.VoteHandler).Methods("POST")
	r.HandleFunc("/incidents/{id}/accept", i.AcceptHandler).Methods("POST")

	r.HandleFunc("/reports", rep.CreateReportHandler).Methods("POST")
	r.HandleFunc("/reports/options", rep.OptionsHandler).Methods("GET")

	r.HandleFunc("/ws/notifications", n.HandleNotificationsWebSocket).Methods("GET")

	return r
}

// Initialize is invoked by main to open the device storage and create the router. The
// backend itself is connected separately by Connect; until then every component sees no
// gateway and reports it as not initialized.
func (a *App) Initialize(ctx context.Context) error {
	store, closeFn, err := databases.OpenDeviceStorage(ctx, &a.Config)
	if err != nil {
		zap.S().Errorw("failed to open device storage", "error", err)
		return err
	}
	a.closeStorage = closeFn

	client, err := gateway.NewClient(&a.Config)
	if err != nil {
		zap.S().Errorw("failed to create backend client", "error", err)
		return err
	}
	client.Observe(api.RecordRemoteCall)

	a.Client = client
	a.Gateways = &gateway.Lazy{}
	a.Decisions = decisions.NewRegistry(store)
	a.Sessions = dispatcher.NewRegistry()
	a.Dispatcher = dispatcher.New(a.Gateways, a.Config.QueueLimit, a.Config.ResolutionTimeout)
	if a.Hub == nil {
		a.Hub = NewNotificationHub()
	}
	a.Scheduler = scheduler.NewScheduler(a.Gateways, a.Hub, a.Config.BellInterval, a.Config.BellKind)
	if a.Bell == nil {
		a.Bell = a.Scheduler
	}

	a.Router = a.New()
	return nil
}

// Connect pings the backend until it answers, then installs the client as the shared
// gateway. It returns early only if ctx ends.
func (a *App) Connect(ctx context.Context) error {
	for {
		err := a.Client.Ping(ctx)
		if err == nil {
			a.Gateways.Set(a.Client)
			zap.S().Infow("lcm-policing has connected to the backend", "url", a.Config.BackendURL)
			return nil
		}
		zap.S().Warnw("backend not reachable yet", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backendRetryInterval):
		}
	}
}

// Close releases the device storage.
func (a *App) Close(ctx context.Context) error {
	if a.closeStorage == nil {
		return nil
	}
	return a.closeStorage(ctx)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.GetMetrics().Summary())
}
