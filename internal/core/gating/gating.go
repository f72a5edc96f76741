// Package gating implements the follower confirmation handshake that must
// complete before a gated automation releases its main message.
package gating

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// State of one (automation, prospect) handshake.
type State string

const (
	StateAwaiting  State = "AWAITING_CONFIRMATION"
	StateConfirmed State = "CONFIRMED"
	StateDelivered State = "DELIVERED"
	StateAbandoned State = "ABANDONED"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateAbandoned
}

const DefaultTimeout = 24 * time.Hour

// ErrInvalidTransition is returned when a transition does not apply to the
// current state.
var ErrInvalidTransition = errors.New("gating: invalid transition")

// Session is the persisted handshake between one automation and one prospect.
type Session struct {
	AutomationID string    `json:"automation_id"`
	OwnerID      string    `json:"owner_id"`
	ProspectID   string    `json:"prospect_id"`
	State        State     `json:"state"`
	StartedAt    time.Time `json:"started_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Start opens a handshake awaiting confirmation until now+timeout.
func Start(automationID, ownerID, prospectID string, now time.Time, timeout time.Duration) Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Session{
		AutomationID: automationID,
		OwnerID:      ownerID,
		ProspectID:   prospectID,
		State:        StateAwaiting,
		StartedAt:    now,
		ExpiresAt:    now.Add(timeout),
		UpdatedAt:    now,
	}
}

// Expired reports whether an awaiting session ran past its deadline.
func (s *Session) Expired(now time.Time) bool {
	return s.State == StateAwaiting && !now.Before(s.ExpiresAt)
}

// Outcome of feeding a prospect reply to a session.
type Outcome int

const (
	// Ignored: the reply is not a confirmation; the session is unchanged.
	Ignored Outcome = iota
	// Confirmed: the session moved to CONFIRMED.
	Confirmed
	// Expired: the deadline passed; the session moved to ABANDONED.
	Expired
	// Closed: the session was not awaiting confirmation.
	Closed
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Confirmed:
		return "confirmed"
	case Expired:
		return "expired"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Reply applies a prospect's reply. Only an exact confirmation moves the
// session forward; anything else leaves it awaiting.
func (s *Session) Reply(text string, now time.Time) Outcome {
	if s.State != StateAwaiting {
		return Closed
	}
	if s.Expired(now) {
		s.State = StateAbandoned
		s.UpdatedAt = now
		return Expired
	}
	if !IsConfirmation(text) {
		return Ignored
	}
	s.State = StateConfirmed
	s.UpdatedAt = now
	return Confirmed
}

// Deliver records that the main message was released.
func (s *Session) Deliver(now time.Time) error {
	if s.State != StateConfirmed {
		return fmt.Errorf("%w: deliver from %s", ErrInvalidTransition, s.State)
	}
	s.State = StateDelivered
	s.UpdatedAt = now
	return nil
}

// Abandon closes a non-terminal session. It is used on expiry and whenever
// the automation stops being gated; such sessions are never promoted.
func (s *Session) Abandon(now time.Time) error {
	if s.State.Terminal() {
		return fmt.Errorf("%w: abandon from %s", ErrInvalidTransition, s.State)
	}
	s.State = StateAbandoned
	s.UpdatedAt = now
	return nil
}

var confirmations = map[string]struct{}{"si": {}}

// IsConfirmation reports whether text is exactly "si" or "sí" once case,
// accents, surrounding whitespace and surrounding punctuation are ignored.
// "si claro" is not a confirmation.
func IsConfirmation(text string) bool {
	_, ok := confirmations[NormalizeReply(text)]
	return ok
}

// NormalizeReply lower-cases text, strips combining marks and trims
// whitespace and punctuation from both ends.
func NormalizeReply(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)
	return strings.TrimFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}
