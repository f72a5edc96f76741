// Package dispatch resolves the concrete outbound messages for a matched
// automation or a button press.
package dispatch

import (
	"context"
	"fmt"

	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/core/matching"
)

// DefaultGatePrompt is sent when a gated automation has no prompt of its own.
const DefaultGatePrompt = "¡Hola! Antes de enviarte la información, ¿ya nos sigues? Responde \"Sí\" para continuar."

// Status summarises what happened to an inbound event.
type Status string

const (
	StatusDispatched Status = "dispatched"
	StatusAwaiting   Status = "awaiting_confirmation"
	StatusNoMatch    Status = "no_match"
	StatusConflict   Status = "conflict"
	StatusDuplicate  Status = "duplicate"
	StatusIgnored    Status = "ignored"
	StatusUnresolved Status = "unresolved_postback"
)

// Button is the interactive element attached to SendDM. It never carries the
// postback response; that is resolved server-side on press.
type Button struct {
	Type    automation.ButtonType `json:"type"`
	Title   string                `json:"title"`
	URL     string                `json:"url,omitempty"`
	Payload string                `json:"payload,omitempty"`
}

// Outbound is the contract handed to the external sender.
type Outbound struct {
	Status            Status         `json:"status"`
	Reason            string         `json:"reason,omitempty"`
	AutomationID      string         `json:"automation_id,omitempty"`
	SendDM            string         `json:"send_dm,omitempty"`
	DMButton          *Button        `json:"dm_button,omitempty"`
	SendPublicReply   string         `json:"send_public_reply,omitempty"`
	ScheduleFollowups []followup.Due `json:"schedule_followups,omitempty"`
}

// Rand picks public replies. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// PostbackLookup resolves a stored postback response.
type PostbackLookup interface {
	Lookup(ctx context.Context, ownerID, payloadKey string) (response string, found bool, err error)
}

// UnresolvedPostbackError reports a postback press with no stored action.
// The prospect receives nothing.
type UnresolvedPostbackError struct {
	OwnerID    string
	PayloadKey string
}

func (e *UnresolvedPostbackError) Error() string {
	return fmt.Sprintf("dispatch: no postback action for payload %q of user %s", e.PayloadKey, e.OwnerID)
}

// Press is a button interaction reported by the platform.
type Press struct {
	Type       automation.ButtonType `json:"type"`
	OwnerID    string                `json:"owner_user_id"`
	ProspectID string                `json:"author_id"`
	PayloadKey string                `json:"payload"`
	EventID    string                `json:"event_id"`
}

// Resolver turns decisions into outbound messages.
type Resolver struct {
	rnd       Rand
	postbacks PostbackLookup
}

func NewResolver(rnd Rand, postbacks PostbackLookup) *Resolver {
	return &Resolver{rnd: rnd, postbacks: postbacks}
}

// Trigger resolves the messages for an automation that passed matching and
// gating: one DM, plus one public reply when triggered by a comment.
func (r *Resolver) Trigger(a automation.Automation, trigger matching.EventType) Outbound {
	out := Outbound{
		Status:       StatusDispatched,
		AutomationID: a.ID,
		SendDM:       a.Message,
	}
	if a.Button != nil {
		out.DMButton = &Button{
			Type:    a.Button.Type,
			Title:   a.Button.Title,
			URL:     a.Button.URL,
			Payload: a.Button.Payload,
		}
	}
	if trigger == matching.EventComment {
		out.SendPublicReply = r.PublicReply(a.ReplyPool)
	}
	return out
}

// Gate resolves the confirmation prompt sent instead of the main message
// while a gated automation awaits the prospect's answer.
func (r *Resolver) Gate(a automation.Automation, trigger matching.EventType) Outbound {
	prompt := a.GatePrompt
	if prompt == "" {
		prompt = DefaultGatePrompt
	}
	out := Outbound{
		Status:       StatusAwaiting,
		AutomationID: a.ID,
		SendDM:       prompt,
	}
	if trigger == matching.EventComment {
		out.SendPublicReply = r.PublicReply(a.ReplyPool)
	}
	return out
}

// PublicReply picks one entry of pool uniformly. An empty pool yields "".
func (r *Resolver) PublicReply(pool []string) string {
	switch len(pool) {
	case 0:
		return ""
	case 1:
		return pool[0]
	}
	return pool[r.rnd.IntN(len(pool))]
}

// Press resolves a button press. A web_url press produces nothing; a postback
// press yields the stored response or an *UnresolvedPostbackError.
func (r *Resolver) Press(ctx context.Context, p Press) (Outbound, error) {
	switch p.Type {
	case automation.ButtonWebURL:
		return Outbound{Status: StatusIgnored, Reason: "url buttons redirect client-side"}, nil
	case automation.ButtonPostback:
	default:
		return Outbound{}, fmt.Errorf("dispatch: unknown button type %q", p.Type)
	}

	resp, found, err := r.postbacks.Lookup(ctx, p.OwnerID, p.PayloadKey)
	if err != nil {
		return Outbound{}, fmt.Errorf("lookup postback: %w", err)
	}
	if !found {
		return Outbound{Status: StatusUnresolved}, &UnresolvedPostbackError{OwnerID: p.OwnerID, PayloadKey: p.PayloadKey}
	}
	return Outbound{Status: StatusDispatched, SendDM: resp}, nil
}
