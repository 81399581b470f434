package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const calendarJSON = `{
  "companies": {
    "ACME": {
      "ticker": "ACME",
      "name": "Acme Corp",
      "ir_site": "https://investors.acme.example",
      "releases": {
        "FY26": {"Q1": {"date": "August 1, 2025"}},
        "2025": {
          "Q2": {"date": "July 1, 2025", "earnings_release": "http://x/e2.pdf"},
          "Q1": {"date": "April 1, 2025", "earnings_release": "http://x/e.pdf"}
        }
      }
    }
  }
}`

func TestReleasesJSONKeepsOrder(t *testing.T) {
	var cal CalendarFile
	require.NoError(t, json.Unmarshal([]byte(calendarJSON), &cal))

	acme := cal.Companies["ACME"]
	require.NotNil(t, acme)
	require.Len(t, acme.Releases, 2)
	assert.Equal(t, "FY26", acme.Releases[0].Label)
	assert.Equal(t, "2025", acme.Releases[1].Label)
	assert.Equal(t, "Q2", acme.Releases[1].Quarters[0].Label)
	assert.Equal(t, "Q1", acme.Releases[1].Quarters[1].Label)

	out, err := json.Marshal(acme.Releases)
	require.NoError(t, err)
	assert.Equal(t,
		`{"FY26":{"Q1":{"date":"August 1, 2025"}},"2025":{"Q2":{"date":"July 1, 2025","earnings_release":"http://x/e2.pdf"},"Q1":{"date":"April 1, 2025","earnings_release":"http://x/e.pdf"}}}`,
		string(out))
}

func TestReleasesJSONDuplicateKeyLastWins(t *testing.T) {
	var r Releases
	require.NoError(t, json.Unmarshal([]byte(`{"2025":{"Q1":{"date":"April 1, 2025"},"Q1":{"date":"April 2, 2025"}}}`), &r))

	p, ok := r.Period("2025", "Q1")
	require.True(t, ok)
	assert.Equal(t, "April 2, 2025", p.Date)
	assert.Len(t, r[0].Quarters, 1)
}

func TestReleasesJSONRejectsNonObject(t *testing.T) {
	var r Releases
	assert.Error(t, json.Unmarshal([]byte(`["2025"]`), &r))
}

func TestReleasesYAMLRoundTrip(t *testing.T) {
	src := `
ticker: ACME
name: Acme Corp
releases:
  "2025":
    Q3:
      date: October 1, 2025
    Q1:
      date: April 1, 2025
      call_transcript: https://x/t.html
`
	var c Company
	require.NoError(t, yaml.Unmarshal([]byte(src), &c))
	require.Len(t, c.Releases, 1)
	assert.Equal(t, []string{"Q3", "Q1"}, []string{c.Releases[0].Quarters[0].Label, c.Releases[0].Quarters[1].Label})

	out, err := yaml.Marshal(&c)
	require.NoError(t, err)

	var again Company
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, c.Releases, again.Releases)
}

func TestReleasesUpsert(t *testing.T) {
	var r Releases
	r = r.Upsert("2025", "Q1", ReleasePeriod{Date: "April 1, 2025"})
	r = r.Upsert("2025", "Q1", ReleasePeriod{EarningsRelease: "http://x/e.pdf"})
	r = r.Upsert("2026", "Q1", ReleasePeriod{})

	p, ok := r.Period("2025", "Q1")
	require.True(t, ok)
	assert.Equal(t, "April 1, 2025", p.Date)
	assert.Equal(t, "http://x/e.pdf", p.URLFor(DocumentTypeEarningsRelease))
	assert.Equal(t, "", p.URLFor(DocumentTypeCallTranscript))
	assert.Len(t, r, 2)

	_, ok = r.Period("2024", "Q1")
	assert.False(t, ok)
}

func TestReleasePeriodEmptyDateKey(t *testing.T) {
	var r Releases
	require.NoError(t, json.Unmarshal([]byte(`{"2025":{"Q1":{"date":""},"Q2":{}}}`), &r))

	q1, _ := r.Period("2025", "Q1")
	q2, _ := r.Period("2025", "Q2")
	assert.True(t, q1.HasDate())
	assert.False(t, q2.HasDate())

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"2025":{"Q1":{"date":""},"Q2":{}}}`, string(out))

	var y Releases
	require.NoError(t, yaml.Unmarshal([]byte("\"2025\":\n  Q1:\n    date: \"\"\n  Q2:\n    time: after-market close\n"), &y))
	q1, _ = y.Period("2025", "Q1")
	q2, _ = y.Period("2025", "Q2")
	assert.True(t, q1.HasDate())
	assert.False(t, q2.HasDate())
}
