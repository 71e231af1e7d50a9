// Package scheduler runs periodic model retraining jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/ml"
	"github.com/yourusername/stock-insight/internal/models"
)

// retrainTimeout bounds one scheduled training run.
const retrainTimeout = 2 * time.Hour

// Retrainer is the slice of the training manager the scheduler drives.
type Retrainer interface {
	TrainIncremental(ctx context.Context, source models.SampleSource, replayRatio float64, baseVersion string, minNewSamples int) (*ml.TrainResult, error)
	TrainFull(ctx context.Context, minSamples int, sources []models.SampleSource) (*ml.TrainResult, error)
}

// Scheduler triggers incremental retraining on a cron schedule, falling back
// to a full run when the incremental gate reports too few new samples and the
// corpus has grown enough for a fresh fit.
type Scheduler struct {
	cron    *cron.Cron
	manager Retrainer
	logger  *logrus.Logger

	mu        sync.RWMutex
	isRunning bool
	jobIDs    []cron.EntryID
}

// NewScheduler creates a retraining scheduler.
func NewScheduler(manager Retrainer, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		manager: manager,
		logger:  logger,
	}
}

// ScheduleRetraining registers the periodic retraining job. source limits
// which sample source feeds incremental runs; empty means all sources.
func (s *Scheduler) ScheduleRetraining(cronExpression string, source models.SampleSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), retrainTimeout)
		defer cancel()
		s.runRetraining(ctx, source)
	}

	entryID, err := s.cron.AddFunc(cronExpression, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add retraining job: %w", err)
	}
	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("cron", cronExpression).Info("Scheduled periodic retraining")
	return nil
}

func (s *Scheduler) runRetraining(ctx context.Context, source models.SampleSource) {
	s.logger.Info("Starting scheduled retraining")

	result, err := s.manager.TrainIncremental(ctx, source, 0, "", 0)
	if err == nil {
		s.logger.WithFields(logrus.Fields{
			"version":     result.Version.VersionID,
			"improvement": result.Version.Metrics.Improvement,
		}).Info("Scheduled incremental retraining completed")
		return
	}

	if !ml.IsInsufficientData(err) {
		s.logger.WithError(err).Error("Scheduled retraining failed")
		return
	}

	s.logger.WithError(err).Info("Too few new samples for incremental run, falling back to full training")
	result, err = s.manager.TrainFull(ctx, 0, nil)
	if err == nil {
		s.logger.WithFields(logrus.Fields{
			"version": result.Version.VersionID,
			"samples": result.Version.SampleCount,
		}).Info("Scheduled full retraining completed")
		return
	}
	if ml.IsInsufficientData(err) {
		s.logger.WithError(err).Info("Sample corpus still too small, skipping this cycle")
		return
	}
	s.logger.WithError(err).Error("Scheduled full retraining failed")
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the earliest upcoming job time, or zero when idle.
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	next := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (next.IsZero() || entry.Next.Before(next)) {
			next = entry.Next
		}
	}
	return next
}
