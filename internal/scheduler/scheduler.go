// Package scheduler runs the spreadsheet reconciliation on a fixed interval
// and on demand, keeping run statistics.
package scheduler

import (
	"context"
	"sync"
	"time"

	"leadboard/internal/events"
	"leadboard/internal/leads"
	"leadboard/pkg/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	StatusStopped = "stopped"
	StatusRunning = "running"
	StatusError   = "error"
)

// Runner performs one reconciliation cycle.
type Runner interface {
	Run(ctx context.Context) (leads.Result, error)
}

type Scheduler struct {
	runner Runner
	bus    *events.Bus
	log    *zap.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	stats  models.SyncStats
}

func New(runner Runner, bus *events.Bus, log *zap.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		bus:    bus,
		log:    log.Named("scheduler"),
		stats:  models.SyncStats{Status: StatusStopped},
	}
}

// Start runs a cycle every interval, plus one right away when runNow is set.
// Cycles are not serialized: a slow cycle may overlap the next one. Calling
// Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration, runNow bool) {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		s.log.Info("auto sync already running")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New()
	c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		s.cycle(runCtx)
	}))
	s.cron = c
	s.cancel = cancel
	s.stats.Status = StatusRunning
	stats := s.stats
	s.mu.Unlock()

	s.log.Info("starting auto sync", zap.Duration("interval", interval), zap.Bool("run_now", runNow))
	s.bus.Emit(events.KindSyncStatus, events.SyncData{Running: true, Stats: stats})

	if runNow {
		s.cycle(runCtx)
	}

	s.mu.Lock()
	if s.cron == c {
		c.Start()
	}
	s.mu.Unlock()
}

// Stop cancels the schedule and waits for a running cycle to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.stats.Status = StatusStopped
	stats := s.stats
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()

	s.log.Info("auto sync stopped")
	s.bus.Emit(events.KindSyncStatus, events.SyncData{Running: false, Stats: stats})
}

// RunNow runs one cycle outside the schedule. The result also counts in Stats.
func (s *Scheduler) RunNow(ctx context.Context) (leads.Result, error) {
	return s.cycle(ctx)
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Stats returns a snapshot of the run statistics.
func (s *Scheduler) Stats() models.SyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Scheduler) snapshotLocked() models.SyncStats {
	stats := s.stats
	if stats.LastSyncTime != nil {
		t := *stats.LastSyncTime
		stats.LastSyncTime = &t
	}
	return stats
}

func (s *Scheduler) cycle(ctx context.Context) (leads.Result, error) {
	res, err := s.runner.Run(ctx)

	s.mu.Lock()
	if err != nil {
		s.stats.ErrorCount++
		s.stats.LastError = err.Error()
		s.stats.Status = StatusError
	} else {
		s.stats.Status = StatusStopped
		if s.cron != nil {
			s.stats.Status = StatusRunning
		}
		now := time.Now()
		s.stats.SyncCount++
		s.stats.LastSyncTime = &now
		s.stats.LastProcessed = res.Written
		s.stats.LastCreated = res.Created
	}
	stats := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		s.log.Error("sync cycle failed", zap.Error(err))
		s.bus.Emit(events.KindSyncError, events.SyncData{Running: s.Running(), Error: err.Error(), Stats: stats})
		return res, err
	}

	s.log.Info("sync cycle finished", zap.Int("written", res.Written), zap.Int("created", res.Created))
	s.bus.Emit(events.KindSyncSuccess, events.SyncData{
		Running: s.Running(),
		Written: res.Written,
		Created: res.Created,
		Stats:   stats,
	})
	return res, nil
}
