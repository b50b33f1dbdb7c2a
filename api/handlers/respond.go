package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/api"
	"github.com/linesmerrill/lcm-policing/config"
	"github.com/linesmerrill/lcm-policing/dispatcher"
	"github.com/linesmerrill/lcm-policing/models"
	templates "github.com/linesmerrill/lcm-policing/templates/html"
)

var kindStatus = map[models.ErrorKind]int{
	models.KindValidation:     http.StatusBadRequest,
	models.KindNotFound:       http.StatusNotFound,
	models.KindInitialization: http.StatusServiceUnavailable,
	models.KindTimeout:        http.StatusGatewayTimeout,
	models.KindBusy:           http.StatusConflict,
	models.KindRemote:         http.StatusBadGateway,
}

// statusFor maps an error kind onto the HTTP status reported for it
func statusFor(err error) int {
	if s, ok := kindStatus[models.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// wantsJSON reports whether the caller asked for JSON rather than HTML fragments
func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// writeError reports an error that left nothing to render
func writeError(w http.ResponseWriter, err error, fallback string) {
	config.ErrorStatus(models.UserMessage(err, fallback), statusFor(err), w, nil)
}

// writeOutcome renders an action outcome: the detail view when there is one, else the
// toast, followed by the refreshed queue when the action produced one.
func writeOutcome(w http.ResponseWriter, r *http.Request, status int, o *dispatcher.Outcome) {
	if wantsJSON(r) {
		writeJSON(w, status, o)
		return
	}
	var body string
	var err error
	if o.Detail != nil {
		body, err = templates.RenderDetail(o)
	} else {
		body, err = templates.RenderToast(o)
	}
	if err == nil && o.Queue != nil {
		var q string
		q, err = templates.RenderQueue(o.Queue)
		body += q
	}
	if err != nil {
		config.ErrorStatus("failed to render page", http.StatusInternalServerError, w, err)
		return
	}
	writeHTML(w, status, body)
}

// writeResult answers an action that may have failed. An outcome carrying the error
// toast is still rendered, with the status of the error.
func writeResult(w http.ResponseWriter, r *http.Request, o *dispatcher.Outcome, err error, fallback string) {
	if err == nil {
		writeOutcome(w, r, http.StatusOK, o)
		return
	}
	zap.S().Warnw(fallback, "error", err, "kind", models.KindOf(err), "path", r.URL.Path)
	if o == nil {
		writeError(w, err, fallback)
		return
	}
	if o.Toast == "" {
		o.Toast = models.UserMessage(err, fallback)
		o.IsError = true
	}
	writeOutcome(w, r, statusFor(err), o)
}

// readForm returns the submitted fields of a form post or a flat JSON object
func readForm(r *http.Request) (url.Values, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	}
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	v := url.Values{}
	for k, s := range body {
		v.Set(k, s)
	}
	return v, nil
}

func incidentID(r *http.Request) models.ID {
	return models.IDFromToken(strings.TrimSpace(mux.Vars(r)["id"]))
}

func caller(r *http.Request) (device, viewer string) {
	return api.DeviceFrom(r.Context()), api.IdentityFrom(r.Context()).UserID
}
