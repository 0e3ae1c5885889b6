package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJanitorSchedule runs the temp file sweep every ten minutes.
const DefaultJanitorSchedule = "@every 10m"

// Janitor periodically removes temp files left by saves that crashed
// before their rename.
type Janitor struct {
	docs   *DocumentService
	maxAge time.Duration
	cron   *cron.Cron
	logger *slog.Logger
}

// NewJanitor validates schedule (standard cron spec or @every) but does
// not start it.
func NewJanitor(docs *DocumentService, schedule string, maxAge time.Duration, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	j := &Janitor{
		docs:   docs,
		maxAge: maxAge,
		cron:   cron.New(),
		logger: logger.With("component", "janitor"),
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.RunOnce() }); err != nil {
		return nil, fmt.Errorf("janitor: invalid schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("janitor scheduled", "max_age", j.maxAge)
}

// Stop halts the schedule and returns a context that is done once a
// running sweep has finished.
func (j *Janitor) Stop() context.Context {
	return j.cron.Stop()
}

// RunOnce sweeps immediately and returns the number of removed files.
func (j *Janitor) RunOnce() int {
	n, err := j.docs.SweepTempFiles(j.maxAge)
	if err != nil {
		j.logger.Warn("sweep failed", "error", err)
		return 0
	}
	return n
}
