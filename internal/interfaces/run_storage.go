package interfaces

import (
	"context"

	"github.com/ternarybob/earnings/internal/models"
)

// RunStorage keeps the history of analysis runs
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	// ListRuns returns the most recent runs first; ticker filters when non-empty
	ListRuns(ctx context.Context, ticker string, limit int) ([]*models.RunRecord, error)
	Close() error
}
