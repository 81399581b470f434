package interfaces

import (
	"github.com/ternarybob/earnings/internal/models"
)

// CalendarStore persists the release calendar (ticker -> year -> quarter -> period)
type CalendarStore interface {
	// Company returns the calendar entry for a ticker (case-insensitive).
	// Returns a NotFound pipeline error when the ticker is unknown.
	Company(ticker string) (*models.Company, error)

	// Companies returns every company sorted by ticker
	Companies() ([]*models.Company, error)

	// AddOrUpdateCompany creates or replaces a company's identity fields, keeping its releases
	AddOrUpdateCompany(ticker, name, irSite string) error

	// AddOrUpdateRelease merges period into ticker/year/quarter
	AddOrUpdateRelease(ticker, year, quarter string, period models.ReleasePeriod) error

	// RemoveCompany deletes a ticker from the calendar
	RemoveCompany(ticker string) error

	// Reload re-reads the calendar from disk
	Reload() error
}
