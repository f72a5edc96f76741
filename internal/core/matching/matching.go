// Package matching decides which automation an inbound comment or direct
// message triggers.
package matching

import (
	"fmt"
	"strings"

	"github.com/replyflow/core/internal/core/automation"
)

// EventType is the kind of inbound event.
type EventType string

const (
	EventComment EventType = "comment"
	EventDM      EventType = "dm"
)

// Event is the inbound contract consumed from the platform receiver.
type Event struct {
	Type        EventType `json:"type"`
	Text        string    `json:"text"`
	PostID      string    `json:"post_id,omitempty"`
	AuthorID    string    `json:"author_id"`
	OwnerUserID string    `json:"owner_user_id"`
	EventID     string    `json:"event_id"`
}

// Channel returns the automation channel that listens to this event type.
func (e Event) Channel() automation.Channel {
	if e.Type == EventComment {
		return automation.ChannelComment
	}
	return automation.ChannelDM
}

// ConflictError reports more than one automation matching at the same scope
// tier. It is a configuration problem and is never resolved by guessing.
type ConflictError struct {
	Tier          automation.Scope
	AutomationIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("matching: %d %s automations match the same event: %s",
		len(e.AutomationIDs), e.Tier, strings.Join(e.AutomationIDs, ", "))
}

// Match returns the automation triggered by ev, or nil when none applies.
//
// Specific-scope automations bound to the event's post are tried first; the
// general tier is only consulted when no specific automation matched. More
// than one match inside the deciding tier is a *ConflictError.
func Match(ev Event, automations []automation.Automation) (*automation.Automation, error) {
	var specific, general []*automation.Automation
	channel := ev.Channel()
	for i := range automations {
		a := &automations[i]
		if !a.Active || a.Channel != channel {
			continue
		}
		if a.OwnerID != "" && ev.OwnerUserID != "" && a.OwnerID != ev.OwnerUserID {
			continue
		}
		switch a.Scope {
		case automation.ScopeSpecific:
			if ev.Type != EventComment || ev.PostID == "" || a.PostID != ev.PostID {
				continue
			}
			if MatchesKeywords(ev.Text, a.Keywords) {
				specific = append(specific, a)
			}
		default:
			if MatchesKeywords(ev.Text, a.Keywords) {
				general = append(general, a)
			}
		}
	}

	for _, tier := range []struct {
		scope   automation.Scope
		matches []*automation.Automation
	}{
		{automation.ScopeSpecific, specific},
		{automation.ScopeGeneral, general},
	} {
		switch len(tier.matches) {
		case 0:
			continue
		case 1:
			return tier.matches[0], nil
		default:
			ids := make([]string, len(tier.matches))
			for i, a := range tier.matches {
				ids[i] = a.ID
			}
			return nil, &ConflictError{Tier: tier.scope, AutomationIDs: ids}
		}
	}
	return nil, nil
}

// MatchesKeywords reports whether text contains any keyword as a
// case-insensitive substring. An empty keyword list matches everything.
func MatchesKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
