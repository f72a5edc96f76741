// Package followup models the timed messages sent after an automation fires.
// It validates and schedules sequences; delivering them is left to an
// external delay queue.
package followup

import (
	"fmt"
	"strings"
	"time"
)

const (
	MaxSteps      = 4
	MinDelayHours = 1
	MaxDelayHours = 23
)

// Step is one delayed message in a sequence.
type Step struct {
	SequenceOrder int    `json:"sequence_order"`
	DelayHours    int    `json:"delay_hours"`
	Message       string `json:"message"`
	Active        bool   `json:"active"`
}

// SequenceError reports a malformed follow-up list. Index is -1 when the
// problem concerns the list as a whole.
type SequenceError struct {
	Index  int
	Reason string
}

func (e *SequenceError) Error() string {
	if e.Index < 0 {
		return "followup: " + e.Reason
	}
	return fmt.Sprintf("followup: step %d: %s", e.Index+1, e.Reason)
}

// Validate checks the count, the delay bounds and that sequence orders run
// 1..N in list order.
func Validate(steps []Step) error {
	if len(steps) > MaxSteps {
		return &SequenceError{Index: -1, Reason: fmt.Sprintf("at most %d steps allowed, got %d", MaxSteps, len(steps))}
	}
	if err := checkOrder(steps); err != nil {
		return err
	}
	for i, s := range steps {
		if s.DelayHours < MinDelayHours || s.DelayHours > MaxDelayHours {
			return &SequenceError{Index: i, Reason: fmt.Sprintf("delay_hours %d outside [%d,%d]", s.DelayHours, MinDelayHours, MaxDelayHours)}
		}
	}
	return nil
}

func checkOrder(steps []Step) error {
	for i, s := range steps {
		if s.SequenceOrder != i+1 {
			return &SequenceError{Index: i, Reason: fmt.Sprintf("sequence_order %d, want %d", s.SequenceOrder, i+1)}
		}
	}
	return nil
}

// Prepare turns a submitted list into the one that is persisted. The
// submitted orders must already run 1..N; inactive and empty steps are then
// dropped, the gaps they leave are closed and the kept steps are validated.
func Prepare(steps []Step) ([]Step, error) {
	if err := checkOrder(steps); err != nil {
		return nil, err
	}
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		s.Message = strings.TrimSpace(s.Message)
		if !s.Active || s.Message == "" {
			continue
		}
		s.SequenceOrder = len(out) + 1
		out = append(out, s)
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Due is a step paired with the time it becomes deliverable.
type Due struct {
	Step
	DueAt time.Time `json:"due_at"`
}

// Schedule computes due times for a prepared sequence. Delays accumulate:
// each step waits its delay after the previous one.
func Schedule(steps []Step, from time.Time) []Due {
	out := make([]Due, 0, len(steps))
	at := from
	for _, s := range steps {
		at = at.Add(time.Duration(s.DelayHours) * time.Hour)
		out = append(out, Due{Step: s, DueAt: at})
	}
	return out
}
