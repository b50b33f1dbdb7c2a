package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/models"
)

// Limits of the report form lookups.
const (
	UserOptionsLimit = 500
	TaskOptionsLimit = 50
)

// ReportOptions fills the report form's pickers. Notice is set when the reporter must
// paste a user id by hand.
type ReportOptions struct {
	Communities []string               `json:"communities"`
	Community   string                 `json:"community,omitempty"`
	Users       []models.CommunityUser `json:"users"`
	Tasks       []TaskOption           `json:"tasks"`
	Notice      string                 `json:"notice,omitempty"`
}

// TaskOption is one entry of the task picker
type TaskOption struct {
	ID    models.ID `json:"id"`
	Label string    `json:"label"`
}

// Options loads the users of community and, when userID is set, that user's tasks.
func (d *Dispatcher) Options(ctx context.Context, community, userID string) (*ReportOptions, error) {
	o := &ReportOptions{Communities: models.DefaultCommunities, Community: strings.TrimSpace(community)}
	if o.Community == "" {
		return o, nil
	}
	g, err := d.gateway()
	if err != nil {
		return nil, err
	}

	err = g.Select(ctx, gateway.Query{
		Table:   "v_policing_users_by_community",
		Columns: []string{"display_name", "user_id"},
		Filters: []gateway.Filter{{Column: "community", Value: o.Community}},
		OrderBy: "display_name",
		Limit:   UserOptionsLimit,
	}, &o.Users)
	switch {
	case err != nil:
		zap.S().Warnw("failed to load community users", "community", o.Community, "error", err)
		o.Users = nil
		o.Notice = fmt.Sprintf("Could not load users for %s. Paste user UUID instead.", o.Community)
	case len(o.Users) == 0:
		o.Notice = fmt.Sprintf("No users found for %s. Paste user UUID.", o.Community)
	}

	if userID = strings.TrimSpace(userID); userID != "" {
		o.Tasks = d.tasks(ctx, g, userID)
	}
	return o, nil
}

// tasks returns the user's newest tasks. A failed lookup is only logged; the report can
// still be filed without a task.
func (d *Dispatcher) tasks(ctx context.Context, g gateway.Gateway, userID string) []TaskOption {
	var tasks []models.Task
	err := g.Select(ctx, gateway.Query{
		Table:      "tasks",
		Columns:    []string{"id", "task_description", "created_at"},
		Filters:    []gateway.Filter{{Column: "user_id", Value: userID}},
		OrderBy:    "created_at",
		Descending: true,
		Limit:      TaskOptionsLimit,
	}, &tasks)
	if err != nil {
		zap.S().Warnw("failed to load tasks", "user", userID, "error", err)
		return nil
	}
	opts := make([]TaskOption, 0, len(tasks))
	for _, t := range tasks {
		opts = append(opts, TaskOption{ID: t.ID, Label: t.Label()})
	}
	return opts
}
