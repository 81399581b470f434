package interfaces

import (
	"context"

	"github.com/ternarybob/earnings/internal/models"
)

// ReportInfo describes a report file in the results directory
type ReportInfo struct {
	Path     string
	Name     string
	Kind     string // single, comparative or custom
	Tickers  []string
	Year     string
	Quarter  string
	Size     int64
	Modified int64 // Unix seconds
}

// ReportWriter writes finished analyses as markdown reports
type ReportWriter interface {
	// Write renders result and stores it, returning the path written.
	// When no directory is writable the report is printed to the console
	// and the returned path is empty.
	Write(result *models.AnalysisResult) (string, error)
}

// ReportSender delivers a finished report file by email
type ReportSender interface {
	SendReport(ctx context.Context, reportPath string, tickers []string) error
	IsConfigured() bool
}
