package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/models"
	"github.com/linesmerrill/lcm-policing/queue"
)

// ReportReasonMinLength is the shortest accepted report reason.
const ReportReasonMinLength = 5

// Reporter files misconduct reports for one device. Only one report is submitted at a
// time.
type Reporter struct {
	d *Dispatcher

	mu   sync.Mutex
	busy bool
}

// NewReporter returns a Reporter that files through d
func NewReporter(d *Dispatcher) *Reporter {
	return &Reporter{d: d}
}

// ValidateReport checks the form and returns the request with trimmed values.
func ValidateReport(req models.ReportMisconductRequest) (models.ReportMisconductRequest, error) {
	req.ReporterID = strings.TrimSpace(req.ReporterID)
	req.Community = strings.TrimSpace(req.Community)
	req.ReportedID = strings.TrimSpace(req.ReportedID)
	req.Reason = strings.TrimSpace(req.Reason)
	req.EvidenceURL = strings.TrimSpace(req.EvidenceURL)

	switch {
	case req.ReporterID == "":
		return req, models.NewValidationError("Please sign in to submit a report.")
	case req.Community == "":
		return req, models.NewValidationError("Pick a Community.")
	case req.ReportedID == "":
		return req, models.NewValidationError("Select a user or paste a user UUID.")
	case utf8.RuneCountInString(req.Reason) < ReportReasonMinLength:
		return req, models.NewValidationError("Please describe what happened (a few words).")
	case req.EvidenceURL != "" && !validURL(req.EvidenceURL):
		return req, models.NewValidationError("Evidence link looks invalid. Use https://… or leave empty.")
	}
	return req, nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Report validates and files req, then refreshes the reporter's queue.
func (r *Reporter) Report(ctx context.Context, req models.ReportMisconductRequest, s queue.Suppressor) (*Outcome, error) {
	req, err := ValidateReport(req)
	if err != nil {
		return &Outcome{State: StateError, IsError: true, Toast: models.UserMessage(err, "")}, err
	}

	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		err := models.ErrActionInFlight
		return &Outcome{State: StateError, IsError: true, Toast: models.UserMessage(err, "")}, err
	}
	r.busy = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.busy = false
		r.mu.Unlock()
	}()

	g, err := r.d.gateway()
	if err != nil {
		return &Outcome{State: StateError, IsError: true, Toast: models.UserMessage(err, "")}, err
	}

	var taskID, evidence interface{}
	if !req.TaskID.IsZero() {
		taskID = req.TaskID
	}
	if req.EvidenceURL != "" {
		evidence = req.EvidenceURL
	}

	var raw json.RawMessage
	err = g.Call(ctx, "report_misconduct", gateway.Args{
		"p_reporter_user_id": req.ReporterID,
		"p_reported_user_id": req.ReportedID,
		"p_task_id":          taskID,
		"p_reason":           fmt.Sprintf("[COMMUNITY:%s] %s", req.Community, req.Reason),
		"p_evidence_url":     evidence,
	}, &raw)
	if err != nil {
		zap.S().Errorw("report_misconduct failed", "reporter", req.ReporterID, "error", err)
		return &Outcome{State: StateError, IsError: true, Toast: models.UserMessage(err, "Could not submit report.")}, err
	}

	var result models.ReportMisconductResult
	if _, err := gateway.DecodeRow(raw, &result); err != nil {
		zap.S().Warnw("unreadable report result", "error", err)
	}
	incidentID := "(unknown)"
	if !result.IncidentID.IsZero() {
		incidentID = result.IncidentID.String()
	}
	toast := fmt.Sprintf("Report submitted. Incident #%s created/updated.", incidentID)
	if result.IsFirstReport {
		toast += " You are the first reporter."
	}
	zap.S().Infow("report filed", "incident", incidentID, "community", req.Community, "first", result.IsFirstReport)

	return &Outcome{
		State: StateViewing,
		Toast: toast,
		Queue: r.d.refreshQueue(ctx, req.ReporterID, s),
	}, nil
}
