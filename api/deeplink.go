package api

import (
	"net/url"
	"strings"

	"github.com/linesmerrill/lcm-policing/models"
)

// NotificationSource is the src value notification links carry
const NotificationSource = "notif"

// DeepLink is the incident a page load asks to open
type DeepLink struct {
	IncidentID models.ID
	Source     string
}

// ParseDeepLink reads ?incident=<id>&src=<source>. It reports true only when the link
// should open the detail view, which is when an incident is named and the source is a
// notification (compared case-insensitively).
func ParseDeepLink(q url.Values) (DeepLink, bool) {
	link := DeepLink{
		IncidentID: models.IDFromToken(strings.TrimSpace(q.Get("incident"))),
		Source:     q.Get("src"),
	}
	if link.IncidentID.IsZero() {
		return link, false
	}
	return link, strings.EqualFold(link.Source, NotificationSource)
}
