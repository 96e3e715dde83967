package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronSpec(t *testing.T) {
	tests := []struct {
		name    string
		hours   []int
		want    string
		wantErr assert.ErrorAssertionFunc
	}{
		{name: "default", hours: []int{11, 13, 15, 17}, want: "0 11,13,15,17 * * *", wantErr: assert.NoError},
		{name: "midnight", hours: []int{0}, want: "0 0 * * *", wantErr: assert.NoError},
		{name: "empty", hours: nil, wantErr: assert.Error},
		{name: "negative", hours: []int{-1}, wantErr: assert.Error},
		{name: "too_late", hours: []int{9, 24}, wantErr: assert.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CronSpec(tt.hours)
			if !tt.wantErr(t, err) {
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCronSpec_FiresAtConfiguredHours(t *testing.T) {
	tehran := time.FixedZone("Asia/Tehran", 3*60*60+30*60)
	spec, err := CronSpec([]int{11, 13, 15, 17})
	require.NoError(t, err)

	schedule, err := cron.ParseStandard(spec)
	require.NoError(t, err)

	at := time.Date(2025, time.October, 17, 12, 30, 0, 0, tehran)
	var got []string
	for range 5 {
		at = schedule.Next(at)
		got = append(got, at.Format(time.RFC3339))
	}

	assert.Equal(t, []string{
		"2025-10-17T13:00:00+03:30",
		"2025-10-17T15:00:00+03:30",
		"2025-10-17T17:00:00+03:30",
		"2025-10-18T11:00:00+03:30",
		"2025-10-18T13:00:00+03:30",
	}, got)
}

func TestWithRecovery(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	err := withRecovery(t.Context(), func(context.Context) error {
		panic("boom")
	}, log)
	assert.ErrorContains(t, err, "panic: boom")

	err = withRecovery(t.Context(), func(context.Context) error {
		return assert.AnError
	}, log)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestScheduler_StartStops(t *testing.T) {
	s := NewScheduler(nil, []int{11}, time.UTC, time.Minute, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_InvalidHours(t *testing.T) {
	s := NewScheduler(nil, nil, time.UTC, time.Minute, slog.New(slog.DiscardHandler))

	err := s.Start(t.Context())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
