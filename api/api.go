package api

import (
	"time"

	"github.com/gorilla/mux"
)

// New creates a new mux router with the middleware every route shares: request
// metrics and logging, the device id, the caller's identity and a request timeout.
func New(jwtSecret string, requestTimeout time.Duration) *mux.Router {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware, Device, Identify(jwtSecret), TimeoutMiddleware(requestTimeout))
	return r
}
