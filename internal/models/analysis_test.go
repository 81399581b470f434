package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComparativeMode(t *testing.T) {
	tests := []struct {
		name      string
		companies []CompanyRef
		want      []string
		wantErr   bool
	}{
		{"two companies", []CompanyRef{{Ticker: "msft"}, {Ticker: "GOOGL"}}, []string{"MSFT", "GOOGL"}, false},
		{"duplicates collapse", []CompanyRef{{Ticker: "MSFT"}, {Ticker: "msft"}, {Ticker: "AMZN"}}, []string{"MSFT", "AMZN"}, false},
		{"one company", []CompanyRef{{Ticker: "MSFT"}}, nil, true},
		{"duplicate only", []CompanyRef{{Ticker: "MSFT"}, {Ticker: "msft"}}, nil, true},
		{"empty ticker", []CompanyRef{{Ticker: "MSFT"}, {Ticker: " "}}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := NewComparativeMode(tt.companies...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var got []string
			for _, c := range mode.Companies() {
				got = append(got, c.Ticker)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "comparative", mode.Name())
		})
	}
}

func TestPipelineErrorKinds(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("run: %w", NewServiceError("analysis service unavailable", cause))

	assert.True(t, errors.Is(err, ErrService))
	assert.False(t, errors.Is(err, ErrEmptyResponse))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindService, KindOf(err))
	assert.Equal(t, "analysis service unavailable", MessageOf(err))

	assert.Equal(t, KindNotFound, KindOf(NewNotFoundError("no release data for ACME")))
	assert.Equal(t, KindService, KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, "empty_response error", ErrEmptyResponse.Error())
}

func TestAnalysisResultHelpers(t *testing.T) {
	result := &AnalysisResult{
		Mode:      "comparative",
		Companies: []CompanyRef{{Ticker: "msft"}, {Ticker: "GOOGL"}},
		Sources: []DocumentRef{
			{Ticker: "MSFT", DocumentType: DocumentTypeEarningsRelease, URL: "http://x/m.pdf"},
			{Ticker: "GOOGL", DocumentType: DocumentTypeCallTranscript, URL: "http://x/g.html"},
		},
		AnalysisText: "analysis",
	}

	assert.True(t, result.Succeeded())
	assert.Equal(t, []string{"MSFT", "GOOGL"}, result.Tickers())
	assert.Equal(t, map[string]string{
		"MSFT earnings_release": "http://x/m.pdf",
		"GOOGL call_transcript": "http://x/g.html",
	}, result.SourceURLs())

	result.Error = "boom"
	assert.False(t, result.Succeeded())
	assert.Equal(t, RunStatusFailed, NewRunRecord(result).Status)
}

func TestParseDocumentType(t *testing.T) {
	dt, ok := ParseDocumentType("Transcript")
	assert.True(t, ok)
	assert.Equal(t, DocumentTypeCallTranscript, dt)

	_, ok = ParseDocumentType("10-K")
	assert.False(t, ok)

	assert.Equal(t, "EARNINGS RELEASE", DocumentTypeEarningsRelease.Label())
}
