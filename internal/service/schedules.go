package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Clock interface {
	Now() time.Time
}

type processFn func(ctx context.Context) error

const DefaultBroadcastTimeout = 2 * time.Minute

// Scheduler fires a broadcast at fixed wall-clock hours in one location.
type Scheduler struct {
	broadcaster *Broadcaster
	hours       []int
	loc         *time.Location
	timeout     time.Duration

	log *slog.Logger
}

func NewScheduler(broadcaster *Broadcaster, hours []int, loc *time.Location, timeout time.Duration, log *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultBroadcastTimeout
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		broadcaster: broadcaster,
		hours:       hours,
		loc:         loc,
		timeout:     timeout,
		log:         log.With("component", "scheduler"),
	}
}

// CronSpec builds a standard 5-field spec firing at minute zero of the given hours.
func CronSpec(hours []int) (string, error) {
	if len(hours) == 0 {
		return "", errors.New("no broadcast hours")
	}
	parts := make([]string, 0, len(hours))
	for _, h := range hours {
		if h < 0 || h > 23 {
			return "", fmt.Errorf("invalid hour %d", h)
		}
		parts = append(parts, strconv.Itoa(h))
	}
	return "0 " + strings.Join(parts, ",") + " * * *", nil
}

// Start blocks until ctx is done. A tick that is still running when ctx is canceled is waited for.
func (s *Scheduler) Start(ctx context.Context) error {
	spec, err := CronSpec(s.hours)
	if err != nil {
		return fmt.Errorf("build cron spec: %w", err)
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err = c.AddFunc(spec, func() {
		s.tick(ctx)
	}); err != nil {
		return fmt.Errorf("add broadcast job: %w", err)
	}

	log := s.log.With("process", "broadcast")
	c.Start()
	log.InfoContext(ctx, "Starting scheduler", "spec", spec, "tz", s.loc.String())
	for _, e := range c.Entries() {
		log.InfoContext(ctx, "Next broadcast", "at", e.Next)
	}

	<-ctx.Done()
	<-c.Stop().Done()
	log.InfoContext(ctx, "Stopped scheduler")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	log := s.log.With("process", "broadcast")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := withRecovery(ctx, func(ctx context.Context) error {
		_, err := s.broadcaster.BroadcastNow(ctx)
		return err
	}, log)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.InfoContext(ctx, "Broadcast interrupted", "error", err)
			return
		}
		log.ErrorContext(ctx, "Failed to run broadcast", "error", err)
	}
}

func withRecovery(ctx context.Context, fn processFn, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Recovered from panic", "error", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
