package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/app"
	"github.com/ternarybob/earnings/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles configPaths // Multiple -config flags supported

	// Analysis
	tickers   = flag.String("ticker", "", "Comma-separated tickers to analyze one after another")
	compare   = flag.String("compare", "", "Comma-separated tickers for one comparative analysis")
	customURL = flag.String("custom-url", "", "Analyze a single document URL")
	fileType  = flag.String("file-type", "earnings_release", "Document type of -custom-url (earnings_release|call_transcript)")
	company   = flag.String("company", "", "Company name for -custom-url")
	model     = flag.String("model", "", "Model override, e.g. gemini-2.5-flash or claude/claude-sonnet-4-5")

	// Overrides
	outputDir    = flag.String("output-dir", "", "Report directory (overrides config)")
	calendarPath = flag.String("calendar", "", "Release calendar file (overrides config)")
	skipEmail    = flag.Bool("skip-email", false, "Do not email reports")
	exportPDF    = flag.Bool("pdf", false, "Also write a PDF copy of each report")

	// Utilities
	listCompanies = flag.Bool("list-companies", false, "List companies in the release calendar")
	listReports   = flag.Bool("list-reports", false, "List reports in the results directory")
	sendReport    = flag.String("send-report", "", "Email an existing report file")
	latest        = flag.String("latest", "", "Email the latest report for a ticker")
	gmailAuth     = flag.Bool("gmail-auth", false, "Authorize Gmail sending and save the token")
	history       = flag.Bool("history", false, "Show recent analysis runs")
	historyLimit  = flag.Int("history-limit", 20, "Number of runs shown by -history")
	schedule      = flag.Bool("schedule", false, "Run batches on the [schedule] cron until interrupted")
	showVersion   = flag.Bool("version", false, "Print version information")

	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Earnings version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("earnings.toml"); err == nil {
			configFiles = append(configFiles, "earnings.toml")
		} else if _, err := os.Stat("deployments/local/earnings.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/earnings.toml")
		}
	}

	// 1. Load configuration (default -> file1 -> file2 -> ... -> .env -> env)
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration %v: %v\n", []string(configFiles), err)
		os.Exit(1)
	}

	// 2. Apply command-line flag overrides (highest priority)
	common.ApplyFlagOverrides(config, *outputDir, *calendarPath, *skipEmail, *exportPDF)

	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 3. Initialize logger with final configuration
	logger = common.InitLogger(config)

	// 4. Print banner
	common.PrintBanner(config, logger)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, application)

	stop()
	application.Close()
	os.Exit(code)
}

// run dispatches to the requested command and returns the process exit code
func run(ctx context.Context, a *app.App) int {
	switch {
	case *listCompanies:
		return runListCompanies(a)
	case *listReports:
		return runListReports(a)
	case *history:
		return runHistory(ctx, a, *historyLimit)
	case *gmailAuth:
		return runGmailAuth(ctx, a)
	case *sendReport != "":
		return runSendReport(ctx, a, *sendReport)
	case *latest != "":
		return runSendLatest(ctx, a, *latest)
	case *customURL != "":
		return runCustomURL(ctx, a, *customURL, *fileType, *company, *model)
	case *compare != "":
		return runCompare(ctx, a, common.SplitList(*compare), *model)
	case *tickers != "":
		return runBatch(ctx, a, common.SplitList(*tickers), *model)
	case *schedule:
		return runSchedule(ctx, a)
	}

	flag.Usage()
	return 2
}
