package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", &Error{Kind: KindTimeout, Message: "slow"})

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, KindRemote, KindOf(errors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		want     string
	}{
		{name: "own message wins", err: &Error{Kind: KindRemote, Message: "permission denied"}, fallback: "Could not verify.", want: "permission denied"},
		{name: "timeout beats fallback", err: ErrTimeout, fallback: "Could not confirm.", want: "The backend did not respond in time."},
		{name: "busy beats fallback", err: ErrActionInFlight, fallback: "Failed to load incident.", want: "Please wait for the current action to finish."},
		{name: "not initialized beats fallback", err: ErrNotInitialized, fallback: "Could not record vote.", want: "Backend not initialized. Try reloading the page."},
		{name: "fallback for not found", err: ErrNotFound, fallback: "Failed to load incident.", want: "Failed to load incident."},
		{name: "kind default", err: ErrActionInFlight, want: "Please wait for the current action to finish."},
		{name: "plain error", err: errors.New("socket closed"), want: "socket closed"},
		{name: "plain error with fallback", err: errors.New("socket closed"), fallback: "Could not ignore.", want: "Could not ignore."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err, tt.fallback))
		})
	}
}

func TestDescribe(t *testing.T) {
	err := &Error{Kind: KindRemote, Message: "bad", Code: "P0001", Status: 400, Details: "text too short", Hint: "add more"}
	assert.Equal(t, "message: bad\ncode: P0001\nstatus: 400\ndetails: text too short\nhint: add more", Describe(err))
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "boom", Describe(errors.New("boom")))
}

func TestRequiredConfirms(t *testing.T) {
	assert.Equal(t, 1, RequiredConfirms("HOME"))
	assert.Equal(t, 1, RequiredConfirms(" home "))
	assert.Equal(t, 5, RequiredConfirms("SCHOOL"))
	assert.Equal(t, 5, RequiredConfirms(""))
}

func TestParseVerdictAndVote(t *testing.T) {
	v, ok := ParseVerdict(" ignore ")
	assert.True(t, ok)
	assert.Equal(t, VerdictIgnore, v)
	_, ok = ParseVerdict("MAYBE")
	assert.False(t, ok)

	vote, ok := ParseVote("decline")
	assert.True(t, ok)
	assert.Equal(t, ActionDecline, vote.Action())
}

func TestDecisionFor(t *testing.T) {
	k, ok := DecisionFor(VerdictFalse)
	assert.True(t, ok)
	assert.Equal(t, StorageKeyFalse, k.StorageKey())

	k, ok = DecisionFor(VerdictIgnore)
	assert.True(t, ok)
	assert.Equal(t, StorageKeyIgnored, k.StorageKey())

	_, ok = DecisionFor(VerdictTrue)
	assert.False(t, ok)
}
