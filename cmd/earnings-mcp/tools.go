package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createListCompaniesTool returns the list_companies tool definition
func createListCompaniesTool() mcp.Tool {
	return mcp.NewTool("list_companies",
		mcp.WithDescription("List companies in the release calendar with their latest reporting period"),
	)
}

// createResolveLatestReleaseTool returns the resolve_latest_release tool definition
func createResolveLatestReleaseTool() mcp.Tool {
	return mcp.NewTool("resolve_latest_release",
		mcp.WithDescription("Find the most recent reporting period and document URLs for a ticker"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Company ticker, case-insensitive (e.g. MSFT)"),
		),
	)
}

// createRunAnalysisTool returns the run_analysis tool definition
func createRunAnalysisTool() mcp.Tool {
	return mcp.NewTool("run_analysis",
		mcp.WithDescription("Analyze the latest earnings documents and write a markdown report. Several tickers run one after another unless compare is set."),
		mcp.WithString("tickers",
			mcp.Required(),
			mcp.Description("Comma-separated tickers"),
		),
		mcp.WithBoolean("compare",
			mcp.Description("Run one comparative analysis across all tickers (default: false)"),
		),
		mcp.WithString("model",
			mcp.Description("Model override, e.g. gemini-2.5-flash or claude/claude-sonnet-4-5"),
		),
		mcp.WithBoolean("send_email",
			mcp.Description("Email the report when email is configured (default: false)"),
		),
	)
}

// createListReportsTool returns the list_reports tool definition
func createListReportsTool() mcp.Tool {
	return mcp.NewTool("list_reports",
		mcp.WithDescription("List reports in the results directory, newest first"),
		mcp.WithString("ticker",
			mcp.Description("Only reports covering this ticker"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
	)
}

// createGetReportTool returns the get_report tool definition
func createGetReportTool() mcp.Tool {
	return mcp.NewTool("get_report",
		mcp.WithDescription("Return the markdown of a report by file name"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Report file name as shown by list_reports"),
		),
	)
}

// createListRunsTool returns the list_runs tool definition
func createListRunsTool() mcp.Tool {
	return mcp.NewTool("list_runs",
		mcp.WithDescription("Show recent analysis runs including failures"),
		mcp.WithString("ticker",
			mcp.Description("Filter by ticker"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
	)
}
