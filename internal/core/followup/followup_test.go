package followup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steps(orders ...int) []Step {
	out := make([]Step, len(orders))
	for i, o := range orders {
		out[i] = Step{SequenceOrder: o, DelayHours: 2, Message: "m", Active: true}
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		steps   []Step
		wantErr bool
	}{
		{name: "empty", steps: nil},
		{name: "contiguous", steps: steps(1, 2, 3, 4)},
		{name: "too many", steps: steps(1, 2, 3, 4, 5), wantErr: true},
		{name: "gap", steps: steps(1, 3), wantErr: true},
		{name: "starts at zero", steps: steps(0, 1), wantErr: true},
		{name: "out of order", steps: steps(2, 1), wantErr: true},
		{name: "delay 24", steps: []Step{{SequenceOrder: 1, DelayHours: 24, Message: "m", Active: true}}, wantErr: true},
		{name: "delay 0", steps: []Step{{SequenceOrder: 1, DelayHours: 0, Message: "m", Active: true}}, wantErr: true},
		{name: "delay 23", steps: []Step{{SequenceOrder: 1, DelayHours: 23, Message: "m", Active: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.steps)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var se *SequenceError
			assert.True(t, errors.As(err, &se), "got %v", err)
		})
	}
}

func TestPrepare(t *testing.T) {
	in := []Step{
		{SequenceOrder: 1, DelayHours: 1, Message: "uno", Active: true},
		{SequenceOrder: 2, DelayHours: 5, Message: "   ", Active: true},
		{SequenceOrder: 3, DelayHours: 5, Message: "off", Active: false},
		{SequenceOrder: 4, DelayHours: 3, Message: " dos ", Active: true},
	}
	out, err := Prepare(in)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].SequenceOrder)
	assert.Equal(t, 2, out[1].SequenceOrder)
	assert.Equal(t, "dos", out[1].Message)
}

func TestPrepareRejectsSubmittedOrder(t *testing.T) {
	tests := []struct {
		name string
		in   []Step
	}{
		{"gap", []Step{
			{SequenceOrder: 1, DelayHours: 1, Message: "uno", Active: true},
			{SequenceOrder: 3, DelayHours: 1, Message: "tres", Active: true},
		}},
		{"reversed", []Step{
			{SequenceOrder: 2, DelayHours: 1, Message: "B", Active: true},
			{SequenceOrder: 1, DelayHours: 1, Message: "A", Active: true},
		}},
		{"gap behind inactive", []Step{
			{SequenceOrder: 1, DelayHours: 1, Message: "uno", Active: true},
			{SequenceOrder: 3, DelayHours: 1, Message: "off", Active: false},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(tt.in)
			var se *SequenceError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, 1, se.Index)
		})
	}
}

func TestPrepareRejectsMoreThanFourActive(t *testing.T) {
	in := steps(1, 2, 3, 4, 5)
	in = append(in, Step{SequenceOrder: 6, DelayHours: 1, Message: "inactive", Active: false})
	_, err := Prepare(in)
	var se *SequenceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, -1, se.Index)
}

func TestSchedule(t *testing.T) {
	from := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	due := Schedule([]Step{
		{SequenceOrder: 1, DelayHours: 2, Message: "a", Active: true},
		{SequenceOrder: 2, DelayHours: 23, Message: "b", Active: true},
	}, from)
	require.Len(t, due, 2)
	assert.Equal(t, from.Add(2*time.Hour), due[0].DueAt)
	assert.Equal(t, from.Add(25*time.Hour), due[1].DueAt)
	assert.Equal(t, "b", due[1].Message)
}
