package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/earnings/internal/app"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/models"
	"github.com/ternarybob/earnings/internal/services/orchestrator"
	"github.com/ternarybob/earnings/internal/services/report"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	result := textResult(fmt.Sprintf(format, args...))
	result.IsError = true
	return result
}

// handleListCompanies implements the list_companies tool
func handleListCompanies(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		companies, err := a.Calendar.Companies()
		if err != nil {
			a.Logger.Error().Err(err).Msg("Calendar read failed")
			return errorResult("Calendar error: %v", err), nil
		}

		rows := make([]companyRow, 0, len(companies))
		for _, c := range companies {
			row := companyRow{Company: c}
			if res, err := a.Resolver.ResolveLatest(c); err == nil {
				row.Latest = res
			}
			rows = append(rows, row)
		}
		return textResult(formatCompanies(rows)), nil
	}
}

// handleResolveLatestRelease implements the resolve_latest_release tool
func handleResolveLatestRelease(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || strings.TrimSpace(ticker) == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		company, err := a.Calendar.Company(ticker)
		if err != nil {
			return errorResult("%v", err), nil
		}
		res, err := a.Resolver.ResolveLatest(company)
		if err != nil {
			return errorResult("%v", err), nil
		}
		return textResult(formatResolution(company, res)), nil
	}
}

// handleRunAnalysis implements the run_analysis tool
func handleRunAnalysis(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := request.RequireString("tickers")
		if err != nil {
			return errorResult("Error: tickers parameter is required"), nil
		}
		tickers := common.SplitList(raw)
		if len(tickers) == 0 {
			return errorResult("Error: tickers parameter is required"), nil
		}

		opts := orchestrator.RunOptions{
			Model:     request.GetString("model", ""),
			SkipEmail: a.Config.Email.Skip || !request.GetBool("send_email", false),
		}

		a.Logger.Info().Strs("tickers", tickers).Bool("compare", request.GetBool("compare", false)).Msg("MCP analysis requested")

		if request.GetBool("compare", false) {
			result := a.Orchestrator.Compare(ctx, tickers, opts)
			return analysisResult(result), nil
		}
		if len(tickers) == 1 {
			result := a.Orchestrator.Analyze(ctx, tickers[0], opts)
			return analysisResult(result), nil
		}

		outcomes := a.Orchestrator.RunBatch(ctx, tickers, opts)
		return textResult(formatBatch(outcomes)), nil
	}
}

func analysisResult(result *models.AnalysisResult) *mcp.CallToolResult {
	if !result.Succeeded() {
		return errorResult("Analysis failed (%s): %s", result.ErrorKind, result.Error)
	}
	return textResult(formatAnalysis(result))
}

// handleListReports implements the list_reports tool
func handleListReports(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reports, err := report.ListReports(a.ReportService.Dir())
		if err != nil {
			return errorResult("Failed to list reports: %v", err), nil
		}

		limit := request.GetInt("limit", 20)
		ticker := strings.ToUpper(strings.TrimSpace(request.GetString("ticker", "")))
		return textResult(formatReports(filterReports(reports, ticker, limit))), nil
	}
}

// handleGetReport implements the get_report tool
func handleGetReport(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("name")
		if err != nil || name == "" {
			return errorResult("Error: name parameter is required"), nil
		}
		// Names only; no paths outside the results directory
		if filepath.Base(name) != name || filepath.Ext(name) != ".md" {
			return errorResult("Error: %q is not a report file name", name), nil
		}

		content, err := os.ReadFile(filepath.Join(a.ReportService.Dir(), name))
		if err != nil {
			return errorResult("Report not found: %v", err), nil
		}
		return textResult(string(content)), nil
	}
}

// handleListRuns implements the list_runs tool
func handleListRuns(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if a.RunStorage == nil {
			return errorResult("Run history is disabled"), nil
		}
		runs, err := a.RunStorage.ListRuns(ctx, request.GetString("ticker", ""), request.GetInt("limit", 20))
		if err != nil {
			a.Logger.Error().Err(err).Msg("ListRuns failed")
			return errorResult("History error: %v", err), nil
		}
		return textResult(formatRuns(runs)), nil
	}
}
