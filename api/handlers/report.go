package handlers

import (
	"net/http"
	"strings"

	"github.com/linesmerrill/lcm-policing/decisions"
	"github.com/linesmerrill/lcm-policing/dispatcher"
	"github.com/linesmerrill/lcm-policing/models"
)

// Report handles report-related requests
type Report struct {
	Dispatcher *dispatcher.Dispatcher
	Decisions  *decisions.Registry
	Sessions   *dispatcher.Registry
}

// CreateReportHandler files a misconduct report against another user
func (re Report) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r)
	if err != nil {
		writeError(w, models.NewValidationError("Invalid form."), "")
		return
	}
	device, viewer := caller(r)
	req := models.ReportMisconductRequest{
		ReporterID:  viewer,
		Community:   form.Get("community"),
		ReportedID:  form.Get("reported_user_id"),
		TaskID:      models.IDFromToken(strings.TrimSpace(form.Get("task_id"))),
		Reason:      form.Get("reason"),
		EvidenceURL: form.Get("evidence_url"),
	}

	cache, err := re.Decisions.ForDevice(r.Context(), device)
	if err != nil {
		writeError(w, err, "Could not submit report.")
		return
	}
	o, err := re.Sessions.Reporter(device, re.Dispatcher).Report(r.Context(), req, cache)
	writeResult(w, r, o, err, "Could not submit report.")
}

// OptionsHandler returns the choices of the report form. ?community selects whose
// users are listed and ?user_id (the reported user) whose tasks.
func (re Report) OptionsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := re.Dispatcher.Options(r.Context(), q.Get("community"), q.Get("user_id"))
	if err != nil {
		writeError(w, err, "Could not load report options.")
		return
	}
	writeJSON(w, http.StatusOK, opts)
}
