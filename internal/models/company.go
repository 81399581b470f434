package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ReleasePeriod is one reporting period of a company's release calendar
type ReleasePeriod struct {
	Date            string `json:"date,omitempty" yaml:"date,omitempty"`                   // e.g. "June 11, 2025"; absent means upcoming/unscheduled
	Time            string `json:"time,omitempty" yaml:"time,omitempty"`                   // e.g. "after-market close"
	ExpectedDate    string `json:"expected_date,omitempty" yaml:"expected_date,omitempty"` // Informational only
	EarningsRelease string `json:"earnings_release,omitempty" yaml:"earnings_release,omitempty" validate:"omitempty,url"`
	CallTranscript  string `json:"call_transcript,omitempty" yaml:"call_transcript,omitempty" validate:"omitempty,url"`

	// emptyDateKey records a "date" key present in the file with an empty value
	emptyDateKey bool
}

// periodFile is the on-disk shape of a ReleasePeriod; a nil Date means the key is absent
type periodFile struct {
	Date            *string `json:"date,omitempty" yaml:"date,omitempty"`
	Time            string  `json:"time,omitempty" yaml:"time,omitempty"`
	ExpectedDate    string  `json:"expected_date,omitempty" yaml:"expected_date,omitempty"`
	EarningsRelease string  `json:"earnings_release,omitempty" yaml:"earnings_release,omitempty"`
	CallTranscript  string  `json:"call_transcript,omitempty" yaml:"call_transcript,omitempty"`
}

func (p ReleasePeriod) toFile() periodFile {
	f := periodFile{
		Time:            p.Time,
		ExpectedDate:    p.ExpectedDate,
		EarningsRelease: p.EarningsRelease,
		CallTranscript:  p.CallTranscript,
	}
	if p.HasDate() {
		date := p.Date
		f.Date = &date
	}
	return f
}

func (p *ReleasePeriod) fromFile(f periodFile) {
	*p = ReleasePeriod{
		Time:            f.Time,
		ExpectedDate:    f.ExpectedDate,
		EarningsRelease: f.EarningsRelease,
		CallTranscript:  f.CallTranscript,
	}
	if f.Date != nil {
		p.Date = *f.Date
		p.emptyDateKey = strings.TrimSpace(p.Date) == ""
	}
}

// MarshalJSON keeps an empty "date" key when one was loaded
func (p ReleasePeriod) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toFile())
}

// UnmarshalJSON records whether the "date" key is present
func (p *ReleasePeriod) UnmarshalJSON(data []byte) error {
	var f periodFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	p.fromFile(f)
	return nil
}

// MarshalYAML keeps an empty "date" key when one was loaded
func (p ReleasePeriod) MarshalYAML() (interface{}, error) {
	return p.toFile(), nil
}

// UnmarshalYAML records whether the "date" key is present
func (p *ReleasePeriod) UnmarshalYAML(value *yaml.Node) error {
	var f periodFile
	if err := value.Decode(&f); err != nil {
		return err
	}
	p.fromFile(f)
	return nil
}

// HasDate reports whether the period carries a date field at all, even an empty one
func (p ReleasePeriod) HasDate() bool {
	return p.emptyDateKey || strings.TrimSpace(p.Date) != ""
}

// URLFor returns the period's URL for a document type
func (p ReleasePeriod) URLFor(docType DocumentType) string {
	switch docType {
	case DocumentTypeEarningsRelease:
		return strings.TrimSpace(p.EarningsRelease)
	case DocumentTypeCallTranscript:
		return strings.TrimSpace(p.CallTranscript)
	}
	return ""
}

// Merge overlays non-empty fields of other onto p
func (p ReleasePeriod) Merge(other ReleasePeriod) ReleasePeriod {
	if other.Date != "" {
		p.Date = other.Date
	}
	if other.emptyDateKey && !p.HasDate() {
		p.emptyDateKey = true
	}
	if other.Time != "" {
		p.Time = other.Time
	}
	if other.ExpectedDate != "" {
		p.ExpectedDate = other.ExpectedDate
	}
	if other.EarningsRelease != "" {
		p.EarningsRelease = other.EarningsRelease
	}
	if other.CallTranscript != "" {
		p.CallTranscript = other.CallTranscript
	}
	return p
}

// QuarterEntry is a quarter label with its period, kept in calendar order
type QuarterEntry struct {
	Label  string
	Period ReleasePeriod
}

// YearEntry is a year label with its quarters, kept in calendar order
type YearEntry struct {
	Label    string
	Quarters []QuarterEntry `validate:"dive"`
}

// Releases is the year_label -> quarter_label -> ReleasePeriod mapping of one company.
// Entries keep the order in which they appear in the calendar file.
type Releases []YearEntry

// Year returns the entry for a year label
func (r Releases) Year(label string) (*YearEntry, bool) {
	for i := range r {
		if r[i].Label == label {
			return &r[i], true
		}
	}
	return nil, false
}

// Period returns the period stored at year/quarter
func (r Releases) Period(year, quarter string) (ReleasePeriod, bool) {
	y, ok := r.Year(year)
	if !ok {
		return ReleasePeriod{}, false
	}
	for _, q := range y.Quarters {
		if q.Label == quarter {
			return q.Period, true
		}
	}
	return ReleasePeriod{}, false
}

// Upsert merges period into year/quarter, appending new labels at the end
func (r Releases) Upsert(year, quarter string, period ReleasePeriod) Releases {
	idx := -1
	for i := range r {
		if r[i].Label == year {
			idx = i
			break
		}
	}
	if idx < 0 {
		r = append(r, YearEntry{Label: year})
		idx = len(r) - 1
	}

	quarters := r[idx].Quarters
	for i := range quarters {
		if quarters[i].Label == quarter {
			quarters[i].Period = quarters[i].Period.Merge(period)
			return r
		}
	}
	r[idx].Quarters = append(quarters, QuarterEntry{Label: quarter, Period: period})
	return r
}

// MarshalJSON writes the releases as nested objects in calendar order
func (r Releases) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, y := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(y.Label)
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteByte('{')
		for j, q := range y.Quarters {
			if j > 0 {
				buf.WriteByte(',')
			}
			qkey, _ := json.Marshal(q.Label)
			buf.Write(qkey)
			buf.WriteByte(':')
			val, err := json.Marshal(q.Period)
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads nested year/quarter objects preserving key order
func (r *Releases) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}

	var out Releases
	err := decodeOrderedObject(data, func(yearLabel string, raw json.RawMessage) error {
		var entry YearEntry
		entry.Label = yearLabel
		if err := decodeOrderedObject(raw, func(quarterLabel string, rawPeriod json.RawMessage) error {
			var period ReleasePeriod
			if err := json.Unmarshal(rawPeriod, &period); err != nil {
				return fmt.Errorf("release %s %s: %w", yearLabel, quarterLabel, err)
			}
			entry.Quarters = upsertQuarter(entry.Quarters, quarterLabel, period)
			return nil
		}); err != nil {
			return err
		}
		out = upsertYear(out, entry)
		return nil
	})
	if err != nil {
		return err
	}
	*r = out
	return nil
}

// UnmarshalYAML reads nested year/quarter mappings preserving key order
func (r *Releases) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("releases: expected a mapping, got %s", value.Tag)
	}

	var out Releases
	for i := 0; i+1 < len(value.Content); i += 2 {
		yearLabel := value.Content[i].Value
		yearNode := value.Content[i+1]
		if yearNode.Kind != yaml.MappingNode {
			return fmt.Errorf("release year %s: expected a mapping", yearLabel)
		}

		entry := YearEntry{Label: yearLabel}
		for j := 0; j+1 < len(yearNode.Content); j += 2 {
			quarterLabel := yearNode.Content[j].Value
			var period ReleasePeriod
			if err := yearNode.Content[j+1].Decode(&period); err != nil {
				return fmt.Errorf("release %s %s: %w", yearLabel, quarterLabel, err)
			}
			entry.Quarters = upsertQuarter(entry.Quarters, quarterLabel, period)
		}
		out = upsertYear(out, entry)
	}
	*r = out
	return nil
}

// MarshalYAML writes the releases as nested mappings in calendar order
func (r Releases) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, y := range r {
		yearNode := &yaml.Node{Kind: yaml.MappingNode}
		for _, q := range y.Quarters {
			periodNode := &yaml.Node{}
			if err := periodNode.Encode(q.Period); err != nil {
				return nil, err
			}
			yearNode.Content = append(yearNode.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: q.Label}, periodNode)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: y.Label}, yearNode)
	}
	return root, nil
}

// Company is one entry of the release calendar
type Company struct {
	Ticker   string   `json:"ticker" yaml:"ticker" validate:"required"`
	Name     string   `json:"name" yaml:"name" validate:"required"`
	IRSite   string   `json:"ir_site,omitempty" yaml:"ir_site,omitempty" validate:"omitempty,url"`
	Releases Releases `json:"releases" yaml:"releases" validate:"dive"`
}

// Ref returns the company's identity without its calendar
func (c *Company) Ref() CompanyRef {
	return CompanyRef{Ticker: strings.ToUpper(c.Ticker), Name: c.Name}
}

// CompanyRef identifies a company in requests and results
type CompanyRef struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// CalendarMeta records when the calendar was last saved
type CalendarMeta struct {
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`
	Version     string    `json:"version" yaml:"version"`
}

// CalendarFile is the on-disk release calendar document
type CalendarFile struct {
	Companies map[string]*Company `json:"companies" yaml:"companies" validate:"dive"`
	Meta      *CalendarMeta       `json:"meta,omitempty" yaml:"meta,omitempty"`
}

func upsertQuarter(quarters []QuarterEntry, label string, period ReleasePeriod) []QuarterEntry {
	for i := range quarters {
		if quarters[i].Label == label {
			quarters[i].Period = period
			return quarters
		}
	}
	return append(quarters, QuarterEntry{Label: label, Period: period})
}

func upsertYear(years Releases, entry YearEntry) Releases {
	for i := range years {
		if years[i].Label == entry.Label {
			years[i] = entry
			return years
		}
	}
	return append(years, entry)
}

// decodeOrderedObject walks a JSON object calling fn for each member in document order
func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
