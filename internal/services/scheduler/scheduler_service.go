package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/ternarybob/earnings/internal/models"
)

// BatchRunner analyses tickers sequentially and reports each outcome
type BatchRunner func(ctx context.Context, tickers []string) []models.BatchOutcome

// Service runs the batch analysis on a cron schedule
type Service struct {
	runner  BatchRunner
	logger  arbor.ILogger
	cron    *cron.Cron
	entryID cron.EntryID
	tickers []string

	mu           sync.Mutex // Protects running, isProcessing and the last* fields
	running      bool
	isProcessing bool
	lastRun      time.Time
	lastOutcomes []models.BatchOutcome
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a scheduler around runner
func NewService(runner BatchRunner, logger arbor.ILogger) *Service {
	return &Service{
		runner: runner,
		logger: logger,
	}
}

// Start registers the batch job and starts the cron runner
func (s *Service) Start(cronExpr string, tickers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if len(tickers) == 0 {
		return models.NewConfigurationError("schedule has no tickers", nil)
	}

	c := cron.New(cron.WithParser(common.CronParser))
	id, err := c.AddFunc(cronExpr, s.runScheduledBatch)
	if err != nil {
		return models.NewConfigurationError(fmt.Sprintf("invalid cron expression %q", cronExpr), err)
	}

	s.cron = c
	s.entryID = id
	s.tickers = append([]string(nil), tickers...)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", cronExpr).
		Strs("tickers", s.tickers).
		Str("next_run", s.cron.Entry(id).Next.Format(time.RFC3339)).
		Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running batch to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCtx := s.cron.Stop()
	cancel := s.cancel
	s.mu.Unlock()

	<-stopCtx.Done()
	cancel()
	s.wg.Wait()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// TriggerNow runs the batch immediately in the background
func (s *Service) TriggerNow() error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return fmt.Errorf("scheduler is not running")
	}

	s.logger.Info().Msg("Manual batch trigger requested")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runScheduledBatch()
	}()
	return nil
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled time, zero when stopped
func (s *Service) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// LastRun returns when the last batch finished and its outcomes
func (s *Service) LastRun() (time.Time, []models.BatchOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastOutcomes
}

// runScheduledBatch runs one batch; overlapping triggers are skipped
func (s *Service) runScheduledBatch() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduled batch")
		}
	}()

	s.mu.Lock()
	if s.isProcessing {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous batch still running, skipping this cycle")
		return
	}
	s.isProcessing = true
	ctx := s.ctx
	tickers := s.tickers
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isProcessing = false
		s.mu.Unlock()
	}()

	start := time.Now()
	s.logger.Info().Strs("tickers", tickers).Msg("Starting scheduled batch")

	outcomes := s.runner(ctx, tickers)

	succeeded := 0
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded++
		}
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastOutcomes = outcomes
	s.mu.Unlock()

	s.logger.Info().
		Int("succeeded", succeeded).
		Int("failed", len(outcomes)-succeeded).
		Dur("elapsed", time.Since(start)).
		Msg("Scheduled batch complete")
}
