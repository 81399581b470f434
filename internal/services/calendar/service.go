package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/models"
	"gopkg.in/yaml.v3"
)

// CalendarVersion is written into meta.version on every save
const CalendarVersion = "1.0.0"

// Service is a file-backed release calendar. The format follows the file
// extension: .yaml/.yml are YAML, everything else is JSON.
type Service struct {
	path     string
	logger   arbor.ILogger
	validate *validator.Validate

	mu   sync.RWMutex
	data *models.CalendarFile
}

// NewService loads the calendar at path, creating an empty one if the file does not exist.
// An unreadable or malformed file is a Configuration pipeline error.
func NewService(path string, logger arbor.ILogger) (*Service, error) {
	if path == "" {
		return nil, models.NewConfigurationError("calendar path cannot be empty", nil)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	s := &Service{
		path:     path,
		logger:   logger,
		validate: validator.New(),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the calendar file location
func (s *Service) Path() string {
	return s.path
}

// Reload re-reads the calendar from disk
func (s *Service) Reload() error {
	data, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	s.logger.Debug().
		Str("path", s.path).
		Int("companies", len(data.Companies)).
		Msg("Release calendar loaded")
	return nil
}

func (s *Service) load() (*models.CalendarFile, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Str("path", s.path).Msg("Calendar file not found, creating empty calendar")
		empty := &models.CalendarFile{Companies: map[string]*models.Company{}}
		if err := s.write(empty); err != nil {
			return nil, err
		}
		return empty, nil
	}
	if err != nil {
		return nil, models.NewConfigurationError(fmt.Sprintf("cannot read calendar %s", s.path), err)
	}

	var data models.CalendarFile
	if s.isYAML() {
		err = yaml.Unmarshal(raw, &data)
	} else {
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, models.NewConfigurationError(fmt.Sprintf("cannot parse calendar %s", s.path), err)
	}

	// Keys are case-insensitive; normalise to lower case like the file convention
	companies := make(map[string]*models.Company, len(data.Companies))
	for key, company := range data.Companies {
		if company == nil {
			continue
		}
		if company.Ticker == "" {
			company.Ticker = strings.ToUpper(key)
		}
		companies[strings.ToLower(key)] = company
	}
	data.Companies = companies

	// A bad entry only affects its own company: the fetcher skips unusable URLs per document
	for key, company := range data.Companies {
		if err := s.validate.Struct(company); err != nil {
			s.logger.Warn().
				Str("path", s.path).
				Str("ticker", strings.ToUpper(key)).
				Err(err).
				Msg("Calendar entry has invalid fields")
		}
	}
	return &data, nil
}

// Company returns a copy of the calendar entry for a ticker
func (s *Service) Company(ticker string) (*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	company, ok := s.data.Companies[strings.ToLower(strings.TrimSpace(ticker))]
	if !ok {
		return nil, models.NewNotFoundError(fmt.Sprintf("no release data found for %s", strings.ToUpper(ticker)))
	}
	return cloneCompany(company), nil
}

// Companies returns copies of every company sorted by ticker
func (s *Service) Companies() ([]*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Company, 0, len(s.data.Companies))
	for _, company := range s.data.Companies {
		out = append(out, cloneCompany(company))
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToUpper(out[i].Ticker) < strings.ToUpper(out[j].Ticker)
	})
	return out, nil
}

// AddOrUpdateCompany creates a company or updates its identity fields, keeping its releases
func (s *Service) AddOrUpdateCompany(ticker, name, irSite string) error {
	key := strings.ToLower(strings.TrimSpace(ticker))
	if key == "" {
		return models.NewConfigurationError("ticker cannot be empty", nil)
	}

	return s.mutate(key, func(data *models.CalendarFile) error {
		company, ok := data.Companies[key]
		if !ok {
			company = &models.Company{}
			data.Companies[key] = company
		}
		company.Ticker = strings.ToUpper(key)
		company.Name = name
		company.IRSite = irSite
		return nil
	})
}

// AddOrUpdateRelease merges period into ticker/year/quarter. The company must exist.
func (s *Service) AddOrUpdateRelease(ticker, year, quarter string, period models.ReleasePeriod) error {
	key := strings.ToLower(strings.TrimSpace(ticker))
	if year == "" || quarter == "" {
		return models.NewConfigurationError("year and quarter are required", nil)
	}

	return s.mutate(key, func(data *models.CalendarFile) error {
		company, ok := data.Companies[key]
		if !ok {
			return models.NewNotFoundError(fmt.Sprintf("company with ticker %s not found", strings.ToUpper(key)))
		}
		company.Releases = company.Releases.Upsert(year, quarter, period)
		return nil
	})
}

// RemoveCompany deletes a ticker. Removing an unknown ticker is a NotFound error.
func (s *Service) RemoveCompany(ticker string) error {
	key := strings.ToLower(strings.TrimSpace(ticker))
	return s.mutate(key, func(data *models.CalendarFile) error {
		if _, ok := data.Companies[key]; !ok {
			return models.NewNotFoundError(fmt.Sprintf("company with ticker %s not found", strings.ToUpper(key)))
		}
		delete(data.Companies, key)
		return nil
	})
}

// mutate applies fn to a copy of the calendar, validates the edited company, saves and swaps it in
func (s *Service) mutate(key string, fn func(data *models.CalendarFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneCalendar(s.data)
	if err := fn(next); err != nil {
		return err
	}
	if company, ok := next.Companies[key]; ok {
		if err := s.validate.Struct(company); err != nil {
			return models.NewConfigurationError(fmt.Sprintf("calendar update for %s rejected", strings.ToUpper(key)), err)
		}
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// write saves data atomically, stamping meta
func (s *Service) write(data *models.CalendarFile) error {
	if data.Meta == nil {
		data.Meta = &models.CalendarMeta{Version: CalendarVersion}
	}
	data.Meta.LastUpdated = time.Now().UTC().Truncate(time.Second)
	if data.Meta.Version == "" {
		data.Meta.Version = CalendarVersion
	}

	var (
		raw []byte
		err error
	)
	if s.isYAML() {
		raw, err = yaml.Marshal(data)
	} else {
		raw, err = json.MarshalIndent(data, "", "  ")
	}
	if err != nil {
		return models.NewPersistenceError("cannot encode calendar", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return models.NewPersistenceError(fmt.Sprintf("cannot create %s", dir), err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return models.NewPersistenceError(fmt.Sprintf("cannot write calendar %s", s.path), err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return models.NewPersistenceError(fmt.Sprintf("cannot replace calendar %s", s.path), err)
	}

	s.logger.Debug().Str("path", s.path).Int("companies", len(data.Companies)).Msg("Release calendar saved")
	return nil
}

func (s *Service) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.path))
	return ext == ".yaml" || ext == ".yml"
}

func cloneCalendar(data *models.CalendarFile) *models.CalendarFile {
	out := &models.CalendarFile{Companies: make(map[string]*models.Company, len(data.Companies))}
	if data.Meta != nil {
		meta := *data.Meta
		out.Meta = &meta
	}
	for key, company := range data.Companies {
		out.Companies[key] = cloneCompany(company)
	}
	return out
}

func cloneCompany(company *models.Company) *models.Company {
	out := *company
	out.Releases = make(models.Releases, len(company.Releases))
	for i, year := range company.Releases {
		quarters := make([]models.QuarterEntry, len(year.Quarters))
		copy(quarters, year.Quarters)
		out.Releases[i] = models.YearEntry{Label: year.Label, Quarters: quarters}
	}
	return &out
}
