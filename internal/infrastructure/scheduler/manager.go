// Package scheduler runs periodic maintenance jobs on gocron.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/biztime"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

// Reconciler brings live nodes in line with the identity directory.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	mu      sync.Mutex
	running bool
}

func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &SchedulerManager{scheduler: s, logger: log}, nil
}

// RegisterReconcileJob runs reconciler every interval, each run bounded by
// interval. A tick that arrives while a run is in progress is skipped.
func (m *SchedulerManager) RegisterReconcileJob(interval time.Duration, reconciler Reconciler) error {
	return m.every("node-reconcile", interval, reconciler.Reconcile, "comm", "reconcile")
}

func (m *SchedulerManager) every(name string, interval time.Duration, run func(context.Context) error, tags ...string) error {
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		started := biztime.NowUTC()
		if err := run(ctx); err != nil {
			m.logger.Errorw("scheduled job failed", "job", name, "error", err, "duration", time.Since(started))
			return
		}
		m.logger.Debugw("scheduled job finished", "job", name, "duration", time.Since(started))
	}

	if _, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(name),
		gocron.WithTags(tags...),
	); err != nil {
		return err
	}

	m.logger.Infow("scheduled job registered", "job", name, "interval", interval.String())
	return nil
}

// Start is a no-op when already running.
func (m *SchedulerManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.scheduler.Start()
	m.running = true
	m.logger.Infow("scheduler started", "jobs", len(m.scheduler.Jobs()))
}

// Stop waits for in-flight jobs and shuts the scheduler down.
func (m *SchedulerManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false

	if err := m.scheduler.Shutdown(); err != nil {
		m.logger.Errorw("scheduler shutdown failed", "error", err)
		return err
	}
	m.logger.Infow("scheduler stopped")
	return nil
}

func (m *SchedulerManager) IsStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
