package resolution_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/gateway/mocks"
	"github.com/linesmerrill/lcm-policing/incident"
	"github.com/linesmerrill/lcm-policing/models"
	"github.com/linesmerrill/lcm-policing/resolution"
)

func TestEngine_LoadState(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantPending bool
		wantConfirm int
		wantVote    models.Vote
	}{
		{
			name:        "object",
			payload:     `{"resolution":{"id":"r1","status":"pending","resolution_text":"apologized to everyone","created_at":"2026-03-03T10:00:00Z"},"confirm_count":2,"decline_count":1,"user_vote":"CONFIRM"}`,
			wantPending: true,
			wantConfirm: 2,
			wantVote:    models.VoteConfirm,
		},
		{
			name:        "single row list",
			payload:     `[{"resolution":{"id":7,"status":"pending","resolution_text":"fixed","created_at":"2026-03-03T10:00:00Z"},"confirm_count":0,"decline_count":0,"user_vote":null}]`,
			wantPending: true,
		},
		{
			name:    "no resolution",
			payload: `{"resolution":null,"confirm_count":0,"decline_count":0,"user_vote":null}`,
		},
		{
			name:    "empty",
			payload: `[]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := mocks.NewGateway(t)
			gw.On("Call", mock.Anything, "get_incident_resolution_state",
				gateway.Args{"p_incident_id": models.IDFromToken("42"), "p_user_id": "U3"}, mock.Anything).
				Run(mocks.RespondCall(tt.payload)).Return(nil).Once()

			state, err := resolution.NewEngine(gateway.Static(gw)).LoadState(context.Background(), models.IDFromToken("42"), "U3")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPending, state.Resolution.IsPending())
			assert.Equal(t, tt.wantConfirm, state.ConfirmCount)
			assert.Equal(t, tt.wantVote, state.UserVote)
		})
	}
}

func TestEngine_LoadStateWithoutGateway(t *testing.T) {
	_, err := resolution.NewEngine(&gateway.Lazy{}).LoadState(context.Background(), models.IDFromToken("42"), "U3")
	assert.ErrorIs(t, err, models.ErrNotInitialized)
}

func pending() *models.ResolutionState {
	return &models.ResolutionState{
		Resolution:   &models.Resolution{ID: models.IDFromToken("r1"), Status: models.ResolutionPending, Text: "I apologized"},
		ConfirmCount: 1,
		UserVote:     models.VoteDecline,
	}
}

func TestDerive(t *testing.T) {
	open := &incident.DetailView{ID: models.IDFromToken("42"), Community: "HOME", Status: "open", ReportedUserID: "U2"}
	closed := &incident.DetailView{ID: models.IDFromToken("42"), Community: "SCHOOL", Status: "closed_resolved", ReportedUserID: "U2", Closed: true, Resolved: true}

	tests := []struct {
		name   string
		detail *incident.DetailView
		state  *models.ResolutionState
		viewer string
		want   resolution.Controls
	}{
		{
			name:   "reported party without resolution",
			detail: open,
			state:  &models.ResolutionState{},
			viewer: "U2",
			want:   resolution.Controls{CanResolve: true, CanAcceptWithoutResolution: true, RequiredConfirms: 1},
		},
		{
			name:   "reported party with pending resolution",
			detail: open,
			state:  pending(),
			viewer: "U2",
			want: resolution.Controls{
				ConfirmCount: 1, RequiredConfirms: 1, ThresholdMet: true, ViewerVote: models.VoteDecline,
				Chip: resolution.ChipPending, Resolution: pending().Resolution,
			},
		},
		{
			name:   "verifier with pending resolution",
			detail: open,
			state:  pending(),
			viewer: "U3",
			want: resolution.Controls{
				ShowVerdicts: true, CanVote: true, ViewerVote: models.VoteDecline,
				ConfirmCount: 1, RequiredConfirms: 1, ThresholdMet: true,
				Chip: resolution.ChipPending, Resolution: pending().Resolution,
			},
		},
		{
			name:   "verifier on closed incident",
			detail: closed,
			state:  nil,
			viewer: "U3",
			want:   resolution.Controls{RequiredConfirms: 5, Chip: resolution.ChipResolved},
		},
		{
			name:   "signed out",
			detail: open,
			state:  &models.ResolutionState{},
			viewer: "",
			want:   resolution.Controls{RequiredConfirms: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolution.Derive(tt.detail, tt.state, tt.viewer))
		})
	}
}

func TestDerive_Threshold(t *testing.T) {
	school := &incident.DetailView{Community: "school", ReportedUserID: "U2"}
	state := pending()
	state.ConfirmCount = 4
	assert.False(t, resolution.Derive(school, state, "U3").ThresholdMet)
	state.ConfirmCount = 5
	assert.True(t, resolution.Derive(school, state, "U3").ThresholdMet)

	home := &incident.DetailView{Community: "home", ReportedUserID: "U2"}
	assert.Equal(t, 1, resolution.Derive(home, pending(), "U3").RequiredConfirms)
}

func TestDerive_VerifiedResolutionChip(t *testing.T) {
	d := &incident.DetailView{Community: "WORK", Status: "open", ReportedUserID: "U2"}
	state := &models.ResolutionState{Resolution: &models.Resolution{Status: models.ResolutionVerified}}
	assert.Equal(t, resolution.ChipResolved, resolution.Derive(d, state, "U3").Chip)

	state.Resolution.Status = models.ResolutionRejected
	assert.Empty(t, resolution.Derive(d, state, "U3").Chip)
}

func TestValidateProposal(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{name: "9 characters", length: 9, wantErr: true},
		{name: "10 characters", length: 10},
		{name: "600 characters", length: 600},
		{name: "601 characters", length: 601, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := resolution.ValidateProposal(strings.Repeat("é", tt.length))
			if tt.wantErr {
				assert.Equal(t, models.KindValidation, models.KindOf(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.length, len([]rune(text)))
		})
	}
}

func TestValidateProposal_Trims(t *testing.T) {
	_, err := resolution.ValidateProposal("   short    ")
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Resolution (pending review)", resolution.Title(&models.Resolution{Status: "pending"}))
	assert.Equal(t, "Resolution (rejected)", resolution.Title(&models.Resolution{Status: "rejected"}))
	assert.Equal(t, "Resolution", resolution.Title(&models.Resolution{Status: "unknown"}))
	assert.Empty(t, resolution.Title(nil))
}
