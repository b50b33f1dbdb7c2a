package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/lcm-policing/dispatcher"
	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/gateway/mocks"
	"github.com/linesmerrill/lcm-policing/models"
)

func TestCreateReportHandler(t *testing.T) {
	a := newTestApp(t)
	a.gw.On("Call", mock.Anything, "report_misconduct", gateway.Args{
		"p_reporter_user_id": "U1",
		"p_reported_user_id": "U2",
		"p_task_id":          models.IDFromToken("17"),
		"p_reason":           "[COMMUNITY:HOME] skipped chores again",
		"p_evidence_url":     nil,
	}, mock.Anything).Run(mocks.RespondCall(`[{"incident_id": 42, "is_first_report": true}]`)).Return(nil).Once()
	a.expect("get_verify_queue", queueRows).Once()

	form := url.Values{
		"community":        {"HOME"},
		"reported_user_id": {"U2"},
		"task_id":          {"17"},
		"reason":           {"  skipped chores again "},
	}
	response := a.executeRequest(request(t, "POST", "/reports", "U1", form))

	checkResponseCode(t, http.StatusOK, response.Code)
	body := response.Body.String()
	assert.Contains(t, body, "Report submitted. Incident #42 created/updated. You are the first reporter.")
	assert.Contains(t, body, `data-incident="43"`)
}

func TestCreateReportHandler_Validation(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		form     url.Values
		wantBody string
	}{
		{name: "signed out", form: url.Values{"community": {"HOME"}}, wantBody: "Please sign in to submit a report."},
		{name: "no community", user: "U1", form: url.Values{"reported_user_id": {"U2"}}, wantBody: "Pick a Community."},
		{name: "short reason", user: "U1", form: url.Values{"community": {"HOME"}, "reported_user_id": {"U2"}, "reason": {"bad"}}, wantBody: "Please describe what happened (a few words)."},
		{name: "bad evidence", user: "U1", form: url.Values{"community": {"HOME"}, "reported_user_id": {"U2"}, "reason": {"skipped chores"}, "evidence_url": {"javascript:alert(1)"}}, wantBody: "Evidence link looks invalid."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t)
			response := a.executeRequest(request(t, "POST", "/reports", tt.user, tt.form))

			checkResponseCode(t, http.StatusBadRequest, response.Code)
			assert.Contains(t, response.Body.String(), tt.wantBody)
			assert.Equal(t, 0, a.called("report_misconduct"))
		})
	}
}

func TestOptionsHandler(t *testing.T) {
	a := newTestApp(t)
	a.gw.On("Select", mock.Anything, mock.MatchedBy(func(q gateway.Query) bool {
		return q.Table == "v_policing_users_by_community"
	}), mock.Anything).Run(mocks.RespondSelect(`[{"display_name": "Ann", "user_id": "U2"}]`)).Return(nil).Once()
	a.gw.On("Select", mock.Anything, mock.MatchedBy(func(q gateway.Query) bool {
		return q.Table == "tasks"
	}), mock.Anything).Run(mocks.RespondSelect(`[{"id": 17, "task_description": "Dishes", "created_at": "2026-03-01T10:00:00Z"}]`)).Return(nil).Once()

	response := a.executeRequest(request(t, "GET", "/reports/options?community=HOME&user_id=U2", "U1", nil))

	checkResponseCode(t, http.StatusOK, response.Code)
	var opts dispatcher.ReportOptions
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &opts))
	assert.Equal(t, "HOME", opts.Community)
	assert.Equal(t, models.DefaultCommunities, opts.Communities)
	require.Len(t, opts.Users, 1)
	assert.Equal(t, "Ann", opts.Users[0].DisplayName)
	require.Len(t, opts.Tasks, 1)
	assert.Equal(t, "Dishes (ID: 17)", opts.Tasks[0].Label)
	assert.Contains(t, response.Body.String(), `"tasks":[{"id":17,"label":"Dishes (ID: 17)"}]`)
}

func TestOptionsHandler_NotInitialized(t *testing.T) {
	a := buildApp(t, nil, &gateway.Lazy{})
	response := a.executeRequest(request(t, "GET", "/reports/options?community=HOME", "U1", nil))

	checkResponseCode(t, http.StatusServiceUnavailable, response.Code)
}
