// Package incident loads a single incident and normalizes it for display.
package incident

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/models"
)

// Defaults for waiting on a gateway that is still being set up.
const (
	DefaultRetryInterval = 200 * time.Millisecond
	DefaultMaxAttempts   = 30
)

const unspecifiedCommunity = "Unspecified"

// ReportView is one report as shown in the detail view
type ReportView struct {
	Number         int    `json:"number"`
	ReporterUserID string `json:"reporterUserId"`
	Reason         string `json:"reason"`
	EvidenceURL    string `json:"evidenceUrl,omitempty"`
	// EvidenceHref is EvidenceURL when it is safe to link (http or https), else empty.
	EvidenceHref string    `json:"evidenceHref,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DetailView is the display model of one incident
type DetailView struct {
	ID             models.ID    `json:"id"`
	Community      string       `json:"community"`
	Status         string       `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
	VerifiersCount int          `json:"verifiersCount"`
	ReportedUserID string       `json:"reportedUserId"`
	TaskID         models.ID    `json:"taskId"`
	Reports        []ReportView `json:"reports"`
	Closed         bool         `json:"closed"`
	Resolved       bool         `json:"resolved"`

	// Incident is the record as the backend returned it.
	Incident models.Incident `json:"-"`
}

// IsReportedParty reports whether viewer is the user the incident is about.
func (d *DetailView) IsReportedParty(viewer string) bool {
	return viewer != "" && viewer == d.ReportedUserID
}

// Aggregator fetches incident detail through whatever gateway the provider currently
// holds
type Aggregator struct {
	Gateways      gateway.Provider
	RetryInterval time.Duration
	MaxAttempts   int
}

// NewAggregator returns an Aggregator with the default retry bounds
func NewAggregator(p gateway.Provider) *Aggregator {
	return &Aggregator{Gateways: p, RetryInterval: DefaultRetryInterval, MaxAttempts: DefaultMaxAttempts}
}

// LoadDetail fetches the incident with get_incident_detail. While the provider has no
// gateway yet it waits RetryInterval between attempts, up to MaxAttempts, and then
// fails with an initialization error. A backend error is returned as is, without retry.
func (a *Aggregator) LoadDetail(ctx context.Context, id models.ID) (*DetailView, error) {
	if id.IsZero() {
		return nil, models.NewValidationError("incident id is required")
	}
	g, err := a.awaitGateway(ctx)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := g.Call(ctx, "get_incident_detail", gateway.Args{"p_incident_id": id}, &raw); err != nil {
		zap.S().Errorw("get_incident_detail failed", "incident", id.String(), "error", err)
		return nil, err
	}
	var inc models.Incident
	found, err := gateway.DecodeRow(raw, &inc)
	if err != nil {
		return nil, &models.Error{Kind: models.KindRemote, Message: "Failed to load incident", Err: err}
	}
	if !found {
		return nil, &models.Error{Kind: models.KindNotFound, Message: "Incident not found."}
	}
	if inc.ID.IsZero() {
		inc.ID = id
	}
	return Normalize(inc), nil
}

func (a *Aggregator) awaitGateway(ctx context.Context) (gateway.Gateway, error) {
	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	interval := a.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	for attempt := 0; ; attempt++ {
		if g := gateway.Current(a.Gateways); g != nil {
			return g, nil
		}
		if attempt >= attempts {
			return nil, &models.Error{Kind: models.KindInitialization, Message: "Backend not initialized. Try reloading the page."}
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, &models.Error{Kind: models.KindInitialization, Message: "gave up waiting for the backend", Err: ctx.Err()}
		case <-t.C:
		}
	}
}

// Normalize turns the backend record into the display model.
func Normalize(inc models.Incident) *DetailView {
	d := &DetailView{
		ID:             inc.ID,
		Community:      strings.TrimSpace(inc.Community),
		Status:         inc.Status,
		CreatedAt:      inc.CreatedAt,
		VerifiersCount: inc.VerifiersCount,
		ReportedUserID: inc.ReportedUserID,
		TaskID:         inc.TaskID,
		Closed:         inc.IsClosed(),
		Resolved:       inc.IsResolved(),
		Incident:       inc,
	}
	if d.Community == "" {
		d.Community = unspecifiedCommunity
	}
	for i, r := range inc.Reports {
		d.Reports = append(d.Reports, ReportView{
			Number:         i + 1,
			ReporterUserID: r.ReporterUserID,
			Reason:         r.Reason,
			EvidenceURL:    r.EvidenceURL,
			EvidenceHref:   SafeHref(r.EvidenceURL),
			CreatedAt:      r.CreatedAt,
		})
	}
	return d
}

// SafeHref returns raw if it is an absolute http or https URL, else "".
func SafeHref(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return raw
	}
	return ""
}
