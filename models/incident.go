package models

import (
	"strings"
	"time"
)

// Incident statuses the client distinguishes. The backend may add further closed_*
// variants; IsClosed treats every one of them as terminal.
const (
	IncidentStatusOpen           = "open"
	IncidentStatusClosedVerified = "closed_verified"
	IncidentStatusClosedResolved = "closed_resolved"
)

// HomeCommunity is the community whose resolutions need a single confirmation.
const HomeCommunity = "HOME"

// DefaultCommunities is offered on the report form.
var DefaultCommunities = []string{"HOME", "SCHOOL", "CHURCH", "WORK", "TEAM"}

// Incident is the denormalized record returned by get_incident_detail
type Incident struct {
	ID             ID        `json:"incident_id"`
	Community      string    `json:"community"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	VerifiersCount int       `json:"verifiers_count"`
	ReportedUserID string    `json:"reported_user_id"`
	TaskID         ID        `json:"task_id"`
	Reports        []Report  `json:"reports"`
}

// IsClosed reports whether the incident reached a terminal status.
func (i Incident) IsClosed() bool {
	return strings.HasPrefix(i.Status, "closed")
}

// IsResolved reports whether the incident closed through an accepted resolution.
func (i Incident) IsResolved() bool {
	return strings.HasPrefix(i.Status, IncidentStatusClosedResolved)
}

// Report is a single misconduct report attached to an incident
type Report struct {
	ReporterUserID string    `json:"reporter_user_id"`
	Reason         string    `json:"reason"`
	EvidenceURL    string    `json:"evidence_url"`
	CreatedAt      time.Time `json:"created_at"`
}

// QueueItem is one row of get_verify_queue
type QueueItem struct {
	IncidentID     ID        `json:"incident_id"`
	Community      string    `json:"community"`
	ReasonPreview  string    `json:"reason_preview"`
	VerifiersCount int       `json:"verifiers_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Verdict is a verifier's judgement on an incident
type Verdict string

// Verdict values accepted by submit_incident_verdict.
const (
	VerdictTrue   Verdict = "TRUE"
	VerdictIgnore Verdict = "IGNORE"
	VerdictFalse  Verdict = "FALSE"
)

// ParseVerdict maps user input onto a Verdict.
func ParseVerdict(s string) (Verdict, bool) {
	switch v := Verdict(strings.ToUpper(strings.TrimSpace(s))); v {
	case VerdictTrue, VerdictIgnore, VerdictFalse:
		return v, true
	}
	return "", false
}

// VerdictResult is the single row returned by submit_incident_verdict
type VerdictResult struct {
	Closed bool   `json:"closed"`
	Status string `json:"status"`
}
