package interfaces

import "time"

// SchedulerService runs batch analyses on a cron schedule
type SchedulerService interface {
	// Start registers the batch job and starts the cron runner
	Start(cronExpr string, tickers []string) error

	// Stop the scheduler and wait for a running batch to finish
	Stop() error

	// TriggerNow runs the batch immediately in the background
	TriggerNow() error

	IsRunning() bool

	// NextRun returns the next scheduled time, zero when stopped
	NextRun() time.Time
}
