package models

import (
	"strings"
	"time"
)

// Resolution statuses
const (
	ResolutionPending  = "pending"
	ResolutionVerified = "verified"
	ResolutionRejected = "rejected"
)

// Resolution text bounds, in characters.
const (
	ResolutionMinLength = 10
	ResolutionMaxLength = 600
)

// Resolution is a reported party's proposed remediation for an incident
type Resolution struct {
	ID         ID         `json:"id"`
	Status     string     `json:"status"`
	Text       string     `json:"resolution_text"`
	CreatedAt  time.Time  `json:"created_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
}

// IsPending reports whether the resolution is awaiting community votes.
func (r *Resolution) IsPending() bool {
	return r != nil && r.Status == ResolutionPending
}

// ResolutionAction is the action argument of submit_incident_resolution
type ResolutionAction string

// Resolution actions
const (
	ActionPropose ResolutionAction = "PROPOSE"
	ActionConfirm ResolutionAction = "CONFIRM"
	ActionDecline ResolutionAction = "DECLINE"
)

// Vote is a verifier's vote on a pending resolution
type Vote string

// Vote values
const (
	VoteConfirm Vote = "CONFIRM"
	VoteDecline Vote = "DECLINE"
)

// ParseVote maps user input onto a Vote.
func ParseVote(s string) (Vote, bool) {
	switch v := Vote(strings.ToUpper(strings.TrimSpace(s))); v {
	case VoteConfirm, VoteDecline:
		return v, true
	}
	return "", false
}

// Action returns the resolution action that submits this vote.
func (v Vote) Action() ResolutionAction {
	if v == VoteDecline {
		return ActionDecline
	}
	return ActionConfirm
}

// ResolutionState is the snapshot returned by get_incident_resolution_state
type ResolutionState struct {
	Resolution   *Resolution `json:"resolution"`
	ConfirmCount int         `json:"confirm_count"`
	DeclineCount int         `json:"decline_count"`
	UserVote     Vote        `json:"user_vote"`
}

// RequiredConfirms is the CONFIRM count that auto-closes a pending resolution in the
// given community.
func RequiredConfirms(community string) int {
	if strings.EqualFold(strings.TrimSpace(community), HomeCommunity) {
		return 1
	}
	return 5
}
