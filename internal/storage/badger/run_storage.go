package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/ternarybob/earnings/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunStorage keeps analysis run history in Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.RunStorage = (*RunStorage)(nil)

// NewRunStorage creates a RunStorage on an open database
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) *RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, run *models.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return models.NewPersistenceError("failed to save run", err)
	}
	s.logger.Debug().Str("run_id", run.ID).Str("status", string(run.Status)).Msg("Run recorded")
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	var run models.RunRecord
	if err := s.db.Store().Get(id, &run); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, models.NewNotFoundError(fmt.Sprintf("run %s not found", id))
		}
		return nil, models.NewPersistenceError("failed to get run", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first; ticker filters when non-empty
func (s *RunStorage) ListRuns(ctx context.Context, ticker string, limit int) ([]*models.RunRecord, error) {
	query := badgerhold.Where("ID").Ne("")
	if ticker != "" {
		query = query.And("Tickers").Contains(strings.ToUpper(ticker))
	}
	query = query.SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.RunRecord
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, models.NewPersistenceError("failed to list runs", err)
	}

	out := make([]*models.RunRecord, 0, len(runs))
	for i := range runs {
		out = append(out, &runs[i])
	}
	return out, nil
}

func (s *RunStorage) Close() error {
	return s.db.Close()
}
