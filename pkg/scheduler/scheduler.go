// Package scheduler runs the background cron jobs the core needs outside
// the request path: a daily sweep that finds specialists whose live
// appointments have drifted into a buffer violation (e.g. after a manual
// reschedule bypassing the orchestrator) and notifies the customer of the
// later appointment in each violating pair.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/queueme/scheduling-core/internal/buffer"
	"github.com/queueme/scheduling-core/internal/notify"
	"github.com/queueme/scheduling-core/internal/repository"
	"github.com/queueme/scheduling-core/pkg/logger"
)

// Scheduler runs the background cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	repo    repository.Repository
	buffers *buffer.Manager
	notify  notify.Notifier
	logger  *logger.Logger
}

func New(repo repository.Repository, buffers *buffer.Manager, notifier notify.Notifier, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		repo:    repo,
		buffers: buffers,
		notify:  notifier,
		logger:  log,
	}
}

// Start registers and starts the daily buffer-conflict sweep.
func (s *Scheduler) Start() {
	s.logger.Info("starting background scheduler")

	if _, err := s.cron.AddFunc("@daily", func() {
		s.runBufferSweep(context.Background())
	}); err != nil {
		s.logger.Error("failed to register buffer sweep job", "error", err)
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping background scheduler")
	s.cron.Stop()
}

// runBufferSweep scans every specialist with a live appointment today for
// buffer violations and notifies the customer of the later appointment in
// each violating pair; a sweep failure is logged, never panics the process.
func (s *Scheduler) runBufferSweep(ctx context.Context) {
	today := time.Now()
	specialistIDs, err := s.liveSpecialistsToday(ctx, today)
	if err != nil {
		s.logger.Error("buffer sweep: specialists lookup failed", "error", err)
		return
	}

	total := 0
	for _, specialistID := range specialistIDs {
		violations, err := s.buffers.CheckConflicts(ctx, specialistID, today, "")
		if err != nil {
			s.logger.Error("buffer sweep: conflict check failed", "specialist_id", specialistID, "error", err)
			continue
		}
		for _, v := range violations {
			total++
			payload := map[string]any{
				"specialist_id":      specialistID,
				"first_appointment":  v.First.ID,
				"second_appointment": v.Second.ID,
				"deficit_minutes":    v.DeficitMinutes,
			}
			if err := s.notify.Notify(ctx, v.Second.CustomerID, notify.KindBookingRescheduled, payload); err != nil {
				s.logger.Warn("buffer sweep: notification failed", "specialist_id", specialistID, "error", err)
			}
		}
	}
	s.logger.Info("buffer sweep complete", "specialists_checked", len(specialistIDs), "violations_found", total)
}

func (s *Scheduler) liveSpecialistsToday(ctx context.Context, date time.Time) ([]string, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	return s.repo.ListSpecialistsWithLiveAppointments(ctx, dayStart, dayEnd)
}
