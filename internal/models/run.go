package models

import "time"

// RunStatus is the terminal state of a recorded run
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the persisted history entry for one analysis run
type RunRecord struct {
	ID            string         `json:"id" badgerhold:"key"`
	Mode          string         `json:"mode" badgerhold:"index"`
	Tickers       []string       `json:"tickers"`
	Year          string         `json:"year"`
	Quarter       string         `json:"quarter"`
	Status        RunStatus      `json:"status" badgerhold:"index"`
	ErrorKind     ErrorKind      `json:"error_kind,omitempty"`
	Error         string         `json:"error,omitempty"`
	ReportPath    string         `json:"report_path,omitempty"`
	DocumentTypes []DocumentType `json:"document_types,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	Model         string         `json:"model,omitempty"`
	Shortened     bool           `json:"shortened"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   time.Time      `json:"completed_at"`
}

// NewRunRecord captures an analysis result for history
func NewRunRecord(result *AnalysisResult) *RunRecord {
	status := RunStatusSucceeded
	if !result.Succeeded() {
		status = RunStatusFailed
	}
	return &RunRecord{
		ID:            result.RunID,
		Mode:          result.Mode,
		Tickers:       result.Tickers(),
		Year:          result.Period.Year,
		Quarter:       result.Period.Quarter,
		Status:        status,
		ErrorKind:     result.ErrorKind,
		Error:         result.Error,
		ReportPath:    result.ReportPath,
		DocumentTypes: result.DocumentTypes,
		Provider:      result.Provider,
		Model:         result.Model,
		Shortened:     result.Shortened,
		StartedAt:     result.StartedAt,
		CompletedAt:   result.CompletedAt,
	}
}
