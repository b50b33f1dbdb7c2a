// Package queue lists the open incidents awaiting the current user's verdict.
package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/models"
)

// Placeholders shown instead of an empty list
const (
	SignedOutPlaceholder = "Sign in to see your Verify Queue."
	EmptyPlaceholder     = "Nothing to verify right now."
)

// DefaultLimit is the number of incidents requested from get_verify_queue.
const DefaultLimit = 20

// PreviewLength bounds the reason preview, in characters.
const PreviewLength = 160

// Suppressor tells whether an incident was hidden on this device
type Suppressor interface {
	IsSuppressed(id models.ID) bool
}

// Entry is one rendered row of the queue
type Entry struct {
	IncidentID     models.ID `json:"incidentId"`
	Community      string    `json:"community"`
	ReasonPreview  string    `json:"reasonPreview"`
	VerifiersCount int       `json:"verifiersCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// View is a rendered queue. Placeholder is set when Entries is empty.
type View struct {
	SignedIn    bool    `json:"signedIn"`
	Entries     []Entry `json:"entries"`
	Placeholder string  `json:"placeholder,omitempty"`
}

// VerifyQueue fetches the queue through the provider's gateway
type VerifyQueue struct {
	Gateways gateway.Provider
	Limit    int
}

// New returns a VerifyQueue asking for limit rows; limit <= 0 uses DefaultLimit.
func New(p gateway.Provider, limit int) *VerifyQueue {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &VerifyQueue{Gateways: p, Limit: limit}
}

// Refresh fetches the queue for userID and drops every incident the suppressor hides.
// Rows keep the backend's order.
func (q *VerifyQueue) Refresh(ctx context.Context, userID string, s Suppressor) (*View, error) {
	if userID == "" {
		return &View{Placeholder: SignedOutPlaceholder}, nil
	}
	g := gateway.Current(q.Gateways)
	if g == nil {
		return nil, &models.Error{Kind: models.KindInitialization, Message: "Backend not initialized. Try reloading the page."}
	}

	var raw json.RawMessage
	err := g.Call(ctx, "get_verify_queue", gateway.Args{"p_user_id": userID, "p_limit": q.limit()}, &raw)
	if err != nil {
		zap.S().Warnw("get_verify_queue failed", "user", userID, "error", err)
		return nil, err
	}
	var items []models.QueueItem
	if body := strings.TrimSpace(string(raw)); body != "" && body != "null" {
		if body[0] != '[' {
			raw = json.RawMessage("[" + body + "]")
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &models.Error{Kind: models.KindRemote, Message: "unexpected verify queue response", Err: err}
		}
	}
	return Filter(items, s), nil
}

func (q *VerifyQueue) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Filter builds the signed-in view of items, leaving out suppressed incidents.
func Filter(items []models.QueueItem, s Suppressor) *View {
	v := &View{SignedIn: true}
	for _, it := range items {
		if it.IncidentID.IsZero() || (s != nil && s.IsSuppressed(it.IncidentID)) {
			continue
		}
		community := strings.TrimSpace(it.Community)
		if community == "" {
			community = "Unspecified"
		}
		v.Entries = append(v.Entries, Entry{
			IncidentID:     it.IncidentID,
			Community:      community,
			ReasonPreview:  Preview(it.ReasonPreview),
			VerifiersCount: it.VerifiersCount,
			CreatedAt:      it.CreatedAt,
		})
	}
	if len(v.Entries) == 0 {
		v.Placeholder = EmptyPlaceholder
	}
	return v
}

// Preview shortens reason to PreviewLength characters.
func Preview(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "(no reason provided)"
	}
	if utf8.RuneCountInString(reason) <= PreviewLength {
		return reason
	}
	r := []rune(reason)
	return strings.TrimSpace(string(r[:PreviewLength-1])) + "…"
}

// Contains reports whether the view lists id.
func (v *View) Contains(id models.ID) bool {
	for _, e := range v.Entries {
		if e.IncidentID.Equal(id) {
			return true
		}
	}
	return false
}
