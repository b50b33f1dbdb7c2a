package dispatcher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/lcm-policing/dispatcher"
	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/gateway/mocks"
	"github.com/linesmerrill/lcm-policing/models"
)

func TestValidateReport(t *testing.T) {
	valid := models.ReportMisconductRequest{ReporterID: "U1", Community: "HOME", ReportedID: "U2", Reason: "skipped chores"}

	tests := []struct {
		name   string
		modify func(r *models.ReportMisconductRequest)
		want   string
	}{
		{name: "signed out", modify: func(r *models.ReportMisconductRequest) { r.ReporterID = "" }, want: "Please sign in to submit a report."},
		{name: "no community", modify: func(r *models.ReportMisconductRequest) { r.Community = "  " }, want: "Pick a Community."},
		{name: "no reported user", modify: func(r *models.ReportMisconductRequest) { r.ReportedID = "" }, want: "Select a user or paste a user UUID."},
		{name: "short reason", modify: func(r *models.ReportMisconductRequest) { r.Reason = " abc " }, want: "Please describe what happened (a few words)."},
		{name: "bad evidence", modify: func(r *models.ReportMisconductRequest) { r.EvidenceURL = "not a link" }, want: "Evidence link looks invalid. Use https://… or leave empty."},
		{name: "valid", modify: func(r *models.ReportMisconductRequest) { r.EvidenceURL = "https://example.com/a.png" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)
			_, err := dispatcher.ValidateReport(req)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, models.UserMessage(err, ""))
		})
	}
}

func TestReporter_ValidationSendsNothing(t *testing.T) {
	gw := mocks.NewGateway(t)
	d := dispatcher.New(gateway.Static(gw), 20, 0)

	o, err := dispatcher.NewReporter(d).Report(context.Background(), models.ReportMisconductRequest{ReporterID: "U1"}, nil)

	assert.Error(t, err)
	assert.True(t, o.IsError)
	assert.Equal(t, "Pick a Community.", o.Toast)
	gw.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReporter_TaskAndEvidence(t *testing.T) {
	gw := mocks.NewGateway(t)
	d := dispatcher.New(gateway.Static(gw), 20, 0)

	gw.On("Call", mock.Anything, "report_misconduct", gateway.Args{
		"p_reporter_user_id": "U1",
		"p_reported_user_id": "U2",
		"p_task_id":          models.IDFromToken("17"),
		"p_reason":           "[COMMUNITY:SCHOOL] copied homework",
		"p_evidence_url":     "https://example.com/a.png",
	}, mock.Anything).Run(mocks.RespondCall(`[{"incident_id": "b5f0", "is_first_report": false}]`)).Return(nil).Once()
	gw.On("Call", mock.Anything, "get_verify_queue", mock.Anything, mock.Anything).
		Run(mocks.RespondCall(`[]`)).Return(nil).Once()

	o, err := dispatcher.NewReporter(d).Report(context.Background(), models.ReportMisconductRequest{
		ReporterID: "U1", Community: "SCHOOL", ReportedID: "U2", TaskID: models.IDFromToken("17"),
		Reason: "copied homework", EvidenceURL: " https://example.com/a.png ",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Report submitted. Incident #b5f0 created/updated.", o.Toast)
}

func TestReporter_RemoteError(t *testing.T) {
	gw := mocks.NewGateway(t)
	d := dispatcher.New(gateway.Static(gw), 20, 0)
	gw.On("Call", mock.Anything, "report_misconduct", mock.Anything, mock.Anything).
		Return(errors.New("connection reset")).Once()

	o, err := dispatcher.NewReporter(d).Report(context.Background(), models.ReportMisconductRequest{
		ReporterID: "U1", Community: "HOME", ReportedID: "U2", Reason: "skipped chores",
	}, nil)
	assert.Error(t, err)
	assert.Equal(t, "Could not submit report.", o.Toast)
}

func TestOptions(t *testing.T) {
	gw := mocks.NewGateway(t)
	d := dispatcher.New(gateway.Static(gw), 20, 0)

	gw.On("Select", mock.Anything, gateway.Query{
		Table:   "v_policing_users_by_community",
		Columns: []string{"display_name", "user_id"},
		Filters: []gateway.Filter{{Column: "community", Value: "HOME"}},
		OrderBy: "display_name",
		Limit:   500,
	}, mock.Anything).Run(mocks.RespondSelect(`[{"display_name": "Ana", "user_id": "U2"}]`)).Return(nil).Once()
	gw.On("Select", mock.Anything, gateway.Query{
		Table:      "tasks",
		Columns:    []string{"id", "task_description", "created_at"},
		Filters:    []gateway.Filter{{Column: "user_id", Value: "U2"}},
		OrderBy:    "created_at",
		Descending: true,
		Limit:      50,
	}, mock.Anything).Run(mocks.RespondSelect(`[{"id": 17, "task_description": "dishes", "created_at": "2026-03-01T10:00:00Z"}, {"id": 18, "task_description": ""}]`)).Return(nil).Once()

	o, err := d.Options(context.Background(), "HOME", "U2")
	require.NoError(t, err)

	assert.Equal(t, models.DefaultCommunities, o.Communities)
	require.Len(t, o.Users, 1)
	assert.Equal(t, "Ana", o.Users[0].DisplayName)
	require.Len(t, o.Tasks, 2)
	assert.Equal(t, "dishes (ID: 17)", o.Tasks[0].Label)
	assert.Equal(t, "Task #18", o.Tasks[1].Label)
	assert.Equal(t, "17", o.Tasks[0].ID.String())
	assert.Empty(t, o.Notice)
}

func TestOptions_Notices(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		rows   string
		notice string
	}{
		{name: "lookup failed", err: errors.New("boom"), notice: "Could not load users for WORK. Paste user UUID instead."},
		{name: "nobody", rows: `[]`, notice: "No users found for WORK. Paste user UUID."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := mocks.NewGateway(t)
			call := gw.On("Select", mock.Anything, mock.Anything, mock.Anything).Return(tt.err).Once()
			if tt.rows != "" {
				call.Run(mocks.RespondSelect(tt.rows))
			}

			o, err := dispatcher.New(gateway.Static(gw), 20, 0).Options(context.Background(), "WORK", "")
			require.NoError(t, err)
			assert.Equal(t, tt.notice, o.Notice)
			assert.Empty(t, o.Users)
		})
	}
}

func TestOptions_NoCommunity(t *testing.T) {
	o, err := dispatcher.New(gateway.Static(nil), 20, 0).Options(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, o.Communities, 5)
	assert.Nil(t, o.Users)
}
