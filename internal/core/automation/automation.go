// Package automation holds the flat automation record edited by the simple
// forms, its save-time validation, and the mapping to and from flow graphs.
package automation

import (
	"fmt"
	"net/url"
	"strings"
)

// Channel is the surface an automation listens on.
type Channel string

const (
	ChannelDM      Channel = "dm"
	ChannelComment Channel = "comment"
)

// Scope decides which posts a comment automation applies to.
type Scope string

const (
	ScopeGeneral  Scope = "general"
	ScopeSpecific Scope = "specific"
)

// ButtonType is the flat-config button variant.
type ButtonType string

const (
	ButtonWebURL   ButtonType = "web_url"
	ButtonPostback ButtonType = "postback"
)

const (
	MinReplyPool = 1
	MaxReplyPool = 10
)

// Button is the optional interactive button attached to the primary DM.
// URL is set for web_url buttons; Payload and Response for postback ones.
type Button struct {
	Type     ButtonType `json:"type"`
	Title    string     `json:"title"`
	URL      string     `json:"url,omitempty"`
	Payload  string     `json:"payload,omitempty"`
	Response string     `json:"response,omitempty"`
}

// Automation is one configured rule mapping a trigger to outgoing messages.
type Automation struct {
	ID              string   `json:"id"`
	OwnerID         string   `json:"owner_id"`
	Channel         Channel  `json:"channel"`
	Scope           Scope    `json:"scope"`
	PostID          string   `json:"post_id,omitempty"`
	PostURL         string   `json:"post_url,omitempty"`
	PostCaption     string   `json:"post_caption,omitempty"`
	Keywords        []string `json:"keywords"`
	Message         string   `json:"message"`
	ReplyPool       []string `json:"reply_pool,omitempty"`
	Active          bool     `json:"active"`
	RequireFollower bool     `json:"require_follower"`
	GatePrompt      string   `json:"gate_prompt,omitempty"`
	Button          *Button  `json:"button,omitempty"`
}

// Gated reports whether a trigger must pass the follower confirmation first.
func (a Automation) Gated() bool {
	return a.Active && a.RequireFollower
}

// ValidationError is raised while saving an automation, before anything is
// persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("automation: invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Normalize trims every text field and lower-cases keywords in place.
// Duplicates are kept so Validate can report them.
func Normalize(a *Automation) {
	a.Channel = Channel(strings.ToLower(strings.TrimSpace(string(a.Channel))))
	a.Scope = Scope(strings.ToLower(strings.TrimSpace(string(a.Scope))))
	if a.Scope == "" {
		a.Scope = ScopeGeneral
	}
	a.PostID = strings.TrimSpace(a.PostID)
	a.PostURL = strings.TrimSpace(a.PostURL)
	a.PostCaption = strings.TrimSpace(a.PostCaption)
	a.Message = strings.TrimSpace(a.Message)
	a.GatePrompt = strings.TrimSpace(a.GatePrompt)

	keywords := make([]string, 0, len(a.Keywords))
	for _, kw := range a.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	a.Keywords = keywords

	pool := make([]string, 0, len(a.ReplyPool))
	for _, r := range a.ReplyPool {
		if r = strings.TrimSpace(r); r != "" {
			pool = append(pool, r)
		}
	}
	a.ReplyPool = pool

	if a.Button != nil {
		b := *a.Button
		b.Type = ButtonType(strings.ToLower(strings.TrimSpace(string(b.Type))))
		b.Title = strings.TrimSpace(b.Title)
		b.URL = strings.TrimSpace(b.URL)
		b.Payload = strings.TrimSpace(b.Payload)
		b.Response = strings.TrimSpace(b.Response)
		a.Button = &b
	}
}

// NormalizeKeywords lower-cases, trims and de-duplicates keywords, keeping
// first-seen order.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// Validate enforces the save-time rules. It expects a normalized automation.
func Validate(a Automation) error {
	switch a.Channel {
	case ChannelDM, ChannelComment:
	default:
		return invalid("channel", "must be dm or comment, got %q", a.Channel)
	}
	switch a.Scope {
	case ScopeGeneral:
	case ScopeSpecific:
		if a.Channel != ChannelComment {
			return invalid("scope", "only comment automations can target a specific post")
		}
		if a.PostID == "" {
			return invalid("post_id", "required for specific scope")
		}
	default:
		return invalid("scope", "must be general or specific, got %q", a.Scope)
	}

	seen := make(map[string]struct{}, len(a.Keywords))
	for _, kw := range a.Keywords {
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			return invalid("keywords", "duplicate keyword %q", kw)
		}
		if strings.Contains(kw, ",") {
			return invalid("keywords", "keyword %q contains a comma", kw)
		}
		seen[key] = struct{}{}
	}

	if a.Message == "" {
		return invalid("message", "must not be empty")
	}

	if a.Channel == ChannelComment {
		if len(a.ReplyPool) < MinReplyPool || len(a.ReplyPool) > MaxReplyPool {
			return invalid("reply_pool", "needs %d to %d replies, got %d", MinReplyPool, MaxReplyPool, len(a.ReplyPool))
		}
	} else if len(a.ReplyPool) > 0 {
		return invalid("reply_pool", "only comment automations reply publicly")
	}

	if a.RequireFollower && a.Button != nil {
		return invalid("button", "follower gating and buttons cannot be combined")
	}
	if a.Button != nil {
		return validateButton(*a.Button)
	}
	return nil
}

func validateButton(b Button) error {
	if b.Title == "" {
		return invalid("button.title", "must not be empty")
	}
	switch b.Type {
	case ButtonWebURL:
		if !IsAbsoluteURL(b.URL) {
			return invalid("button.url", "%q is not an absolute http(s) url", b.URL)
		}
	case ButtonPostback:
		if b.Payload == "" {
			return invalid("button.payload", "must not be empty")
		}
		if b.Response == "" {
			return invalid("button.response", "must not be empty")
		}
	default:
		return invalid("button.type", "must be web_url or postback, got %q", b.Type)
	}
	return nil
}

// IsAbsoluteURL reports whether raw parses as an http or https URL with a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
