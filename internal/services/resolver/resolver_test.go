package resolver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/models"
)

func company(releases models.Releases) *models.Company {
	return &models.Company{Ticker: "acme", Name: "Acme Corp", Releases: releases}
}

func TestResolveLatest(t *testing.T) {
	tests := []struct {
		name        string
		releases    models.Releases
		wantYear    string
		wantQuarter string
		upcoming    bool
	}{
		{
			name: "latest date within year",
			releases: models.Releases{
				{Label: "2025", Quarters: []models.QuarterEntry{
					{Label: "Q1", Period: models.ReleasePeriod{Date: "April 1, 2025", EarningsRelease: "http://x/e.pdf"}},
					{Label: "Q2", Period: models.ReleasePeriod{Date: "July 1, 2025", EarningsRelease: "http://x/e2.pdf"}},
				}},
			},
			wantYear: "2025", wantQuarter: "Q2",
		},
		{
			name: "date wins over quarter label",
			releases: models.Releases{
				{Label: "2025", Quarters: []models.QuarterEntry{
					{Label: "Q4", Period: models.ReleasePeriod{Date: "February 1, 2025"}},
					{Label: "Q1", Period: models.ReleasePeriod{Date: "May 1, 2025"}},
				}},
			},
			wantYear: "2025", wantQuarter: "Q1",
		},
		{
			name: "fiscal and calendar labels compared by date",
			releases: models.Releases{
				{Label: "FY26", Quarters: []models.QuarterEntry{
					{Label: "Q1", Period: models.ReleasePeriod{Date: "August 1, 2025"}},
				}},
				{Label: "2025", Quarters: []models.QuarterEntry{
					{Label: "Q3", Period: models.ReleasePeriod{Date: "October 20, 2025"}},
				}},
			},
			wantYear: "2025", wantQuarter: "Q3",
		},
		{
			name: "tie goes to later entry",
			releases: models.Releases{
				{Label: "2025", Quarters: []models.QuarterEntry{
					{Label: "Q1", Period: models.ReleasePeriod{Date: "July 1, 2025"}},
					{Label: "Q2", Period: models.ReleasePeriod{Date: "July 1, 2025"}},
				}},
			},
			wantYear: "2025", wantQuarter: "Q2",
		},
		{
			name: "unparseable dates fall back to last dated label",
			releases: models.Releases{
				{Label: "2024", Quarters: []models.QuarterEntry{
					{Label: "Q4", Period: models.ReleasePeriod{Date: "TBD"}},
				}},
				{Label: "2025", Quarters: []models.QuarterEntry{
					{Label: "Q1", Period: models.ReleasePeriod{Date: "soon"}},
					{Label: "Q3", Period: models.ReleasePeriod{}},
					{Label: "Q2", Period: models.ReleasePeriod{Date: "2025-07-01"}},
				}},
			},
			wantYear: "2025", wantQuarter: "Q2",
		},
		{
			name: "no dates returns first quarter label as upcoming",
			releases: models.Releases{
				{Label: "2025", Quarters: []models.QuarterEntry{
					{Label: "Q3", Period: models.ReleasePeriod{ExpectedDate: "October 2025"}},
					{Label: "Q2", Period: models.ReleasePeriod{}},
				}},
			},
			wantYear: "2025", wantQuarter: "Q2", upcoming: true,
		},
	}

	r := NewResolver(arbor.NewLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveLatest(company(tt.releases))
			require.NoError(t, err)
			assert.Equal(t, tt.wantYear, got.Year)
			assert.Equal(t, tt.wantQuarter, got.Quarter)
			assert.Equal(t, tt.upcoming, got.Upcoming)

			again, err := r.ResolveLatest(company(tt.releases))
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestResolveLatestEmptyDateCountsAsDated(t *testing.T) {
	var releases models.Releases
	require.NoError(t, json.Unmarshal([]byte(`{"2025":{"Q1":{"date":""},"Q2":{"earnings_release":"http://x/e2.pdf"}}}`), &releases))

	got, err := NewResolver(arbor.NewLogger()).ResolveLatest(company(releases))
	require.NoError(t, err)
	assert.Equal(t, "Q1", got.Quarter)
	assert.False(t, got.Upcoming)
}

func TestResolveLatestNotFound(t *testing.T) {
	r := NewResolver(arbor.NewLogger())

	_, err := r.ResolveLatest(nil)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = r.ResolveLatest(company(nil))
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = r.ResolveLatest(company(models.Releases{{Label: "2025"}}))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestYearRank(t *testing.T) {
	assert.Equal(t, 2025, YearRank("2025"))
	assert.Equal(t, 2025, YearRank("FY25"))
	assert.Equal(t, 2026, YearRank("FY2026"))
	assert.Equal(t, 0, YearRank("upcoming"))
}
