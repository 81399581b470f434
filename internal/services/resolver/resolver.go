package resolver

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/models"
)

// ReleaseDateLayout is the long-form date used in release calendars ("June 11, 2025")
const ReleaseDateLayout = "January 2, 2006"

// Resolution is the latest reporting period found for a company
type Resolution struct {
	Year    string
	Quarter string
	Period  models.ReleasePeriod
	// Date is the parsed release date, zero for fallback selections
	Date time.Time
	// Upcoming is set when no quarter carries a date
	Upcoming bool
}

// Resolver picks the most recent reporting period from a company's calendar.
//
// Every quarter with a parseable date takes part in one chronological comparison
// across all years. Year labels only rank years for the fallback paths, where
// "FY25" and "2025" both rank as 2025.
type Resolver struct {
	logger arbor.ILogger
}

// NewResolver creates a resolver
func NewResolver(logger arbor.ILogger) *Resolver {
	return &Resolver{logger: logger}
}

// ResolveLatest returns the latest period or a NotFound pipeline error
func (r *Resolver) ResolveLatest(company *models.Company) (*Resolution, error) {
	if company == nil {
		return nil, models.NewNotFoundError("no release data")
	}
	ticker := strings.ToUpper(company.Ticker)

	years := make([]models.YearEntry, 0, len(company.Releases))
	for _, y := range company.Releases {
		if len(y.Quarters) > 0 {
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return nil, models.NewNotFoundError(fmt.Sprintf("no release data found for %s", ticker))
	}

	// Chronological pass across every year, in calendar order; ties go to the later entry
	var best *Resolution
	for _, y := range years {
		for _, q := range y.Quarters {
			if strings.TrimSpace(q.Period.Date) == "" {
				continue
			}
			parsed, err := time.Parse(ReleaseDateLayout, strings.TrimSpace(q.Period.Date))
			if err != nil {
				r.logger.Warn().
					Str("ticker", ticker).
					Str("year", y.Label).
					Str("quarter", q.Label).
					Str("date", q.Period.Date).
					Err(err).
					Msg("Could not parse release date, skipping quarter")
				continue
			}
			if best == nil || !parsed.Before(best.Date) {
				best = &Resolution{Year: y.Label, Quarter: q.Label, Period: q.Period, Date: parsed}
			}
		}
	}
	if best != nil {
		r.logger.Debug().
			Str("ticker", ticker).
			Str("year", best.Year).
			Str("quarter", best.Quarter).
			Str("date", best.Date.Format(ReleaseDateLayout)).
			Msg("Resolved latest release by date")
		return best, nil
	}

	// No parseable dates anywhere: fall back to the highest ranked year
	latest := rankYears(years)[0]

	quarters := make([]models.QuarterEntry, len(latest.Quarters))
	copy(quarters, latest.Quarters)
	sort.SliceStable(quarters, func(i, j int) bool { return quarters[i].Label > quarters[j].Label })
	for _, q := range quarters {
		if q.Period.HasDate() {
			r.logger.Debug().
				Str("ticker", ticker).
				Str("year", latest.Label).
				Str("quarter", q.Label).
				Msg("Resolved latest release by quarter label")
			return &Resolution{Year: latest.Label, Quarter: q.Label, Period: q.Period}, nil
		}
	}

	// Nothing dated: earliest quarter label is the upcoming placeholder
	first := quarters[len(quarters)-1]
	r.logger.Debug().
		Str("ticker", ticker).
		Str("year", latest.Label).
		Str("quarter", first.Label).
		Msg("No dated releases, using upcoming quarter")
	return &Resolution{Year: latest.Label, Quarter: first.Label, Period: first.Period, Upcoming: true}, nil
}

var yearDigits = regexp.MustCompile(`(\d{4}|\d{2})`)

// YearRank normalises a year label to a calendar year: "2025" -> 2025, "FY25" -> 2025.
// Labels without digits rank as 0.
func YearRank(label string) int {
	m := yearDigits.FindString(label)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	if len(m) == 2 {
		n += 2000
	}
	return n
}

// rankYears orders years newest first, breaking rank ties by label descending
func rankYears(years []models.YearEntry) []models.YearEntry {
	out := make([]models.YearEntry, len(years))
	copy(out, years)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := YearRank(out[i].Label), YearRank(out[j].Label)
		if ri != rj {
			return ri > rj
		}
		return out[i].Label > out[j].Label
	})
	return out
}
