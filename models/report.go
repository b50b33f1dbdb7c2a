package models

import (
	"fmt"
	"time"
)

// ReportMisconductRequest holds the report form values
type ReportMisconductRequest struct {
	ReporterID  string `json:"-"`
	Community   string `json:"community"`
	ReportedID  string `json:"reported_user_id"`
	TaskID      ID     `json:"task_id"`
	Reason      string `json:"reason"`
	EvidenceURL string `json:"evidence_url"`
}

// ReportMisconductResult is the row returned by report_misconduct
type ReportMisconductResult struct {
	IncidentID    ID   `json:"incident_id"`
	IsFirstReport bool `json:"is_first_report"`
}

// CommunityUser is a row of v_policing_users_by_community
type CommunityUser struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Task is a row of the tasks table offered when linking a report to a task
type Task struct {
	ID          ID        `json:"id"`
	Description string    `json:"task_description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Label is the option text shown for the task.
func (t Task) Label() string {
	if t.Description != "" {
		return fmt.Sprintf("%s (ID: %s)", t.Description, t.ID)
	}
	return fmt.Sprintf("Task #%s", t.ID)
}

// HealthCheckResponse is returned by /health
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
