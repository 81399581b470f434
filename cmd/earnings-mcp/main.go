package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/earnings/internal/app"
	"github.com/ternarybob/earnings/internal/common"
)

func main() {
	configPath := os.Getenv("EARNINGS_CONFIG")
	if configPath == "" {
		configPath = "earnings.toml"
	}

	var paths []string
	if _, err := os.Stat(configPath); err == nil {
		paths = append(paths, configPath)
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs only go to file
	config.Logging.Output = []string{"file"}
	logger := common.InitLogger(config)

	application, err := app.New(config, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"earnings",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Calendar tools
	mcpServer.AddTool(createListCompaniesTool(), handleListCompanies(application))
	mcpServer.AddTool(createResolveLatestReleaseTool(), handleResolveLatestRelease(application))

	// Analysis tools
	mcpServer.AddTool(createRunAnalysisTool(), handleRunAnalysis(application))

	// Report tools
	mcpServer.AddTool(createListReportsTool(), handleListReports(application))
	mcpServer.AddTool(createGetReportTool(), handleGetReport(application))
	mcpServer.AddTool(createListRunsTool(), handleListRuns(application))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
		os.Exit(1)
	}
}
