package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ternarybob/earnings/internal/app"
	"github.com/ternarybob/earnings/internal/models"
	"github.com/ternarybob/earnings/internal/services/report"
)

func runBatch(ctx context.Context, a *app.App, tickers []string, model string) int {
	logger.Info().Strs("tickers", tickers).Msg("Starting analysis")

	outcomes := a.Orchestrator.RunBatch(ctx, tickers, a.RunOptions(model))
	printBatchSummary(outcomes)

	for _, o := range outcomes {
		if !o.Succeeded {
			return 1
		}
	}
	return 0
}

func runCompare(ctx context.Context, a *app.App, tickers []string, model string) int {
	result := a.Orchestrator.Compare(ctx, tickers, a.RunOptions(model))
	return printResult(result)
}

func runCustomURL(ctx context.Context, a *app.App, rawURL, fileType, companyName, model string) int {
	docType, ok := models.ParseDocumentType(fileType)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown -file-type %q (want earnings_release or call_transcript)\n", fileType)
		return 2
	}
	result := a.Orchestrator.AnalyzeURL(ctx, rawURL, docType, companyName, a.RunOptions(model))
	return printResult(result)
}

func printResult(result *models.AnalysisResult) int {
	if !result.Succeeded() {
		fmt.Printf("\n❌ %s: %s\n", result.Company, result.Error)
		return 1
	}
	where := result.ReportPath
	if where == "" {
		where = "(printed to console)"
	}
	fmt.Printf("\n✅ %s %s: %s\n", result.Company, result.Period, where)
	return 0
}

// printBatchSummary lists every ticker with its report file or error
func printBatchSummary(outcomes []models.BatchOutcome) {
	succeeded := 0
	fmt.Println()
	fmt.Println("Batch summary")
	fmt.Println(strings.Repeat("-", 60))
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded++
			name := filepath.Base(o.ReportPath)
			if o.ReportPath == "" {
				name = "(printed to console)"
			}
			fmt.Printf("✅ %-8s %s\n", o.Ticker, name)
			continue
		}
		fmt.Printf("❌ %-8s %s\n", o.Ticker, o.Error)
	}
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("%d of %d succeeded\n", succeeded, len(outcomes))
}

func runListCompanies(a *app.App) int {
	companies, err := a.Calendar.Companies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read calendar: %v\n", err)
		return 1
	}
	if len(companies) == 0 {
		fmt.Printf("No companies in %s\n", a.Calendar.Path())
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tNAME\tLATEST\tDATE")
	for _, c := range companies {
		latest, date := "-", "-"
		if res, err := a.Resolver.ResolveLatest(c); err == nil {
			latest = strings.TrimSpace(res.Quarter + " " + res.Year)
			switch {
			case res.Upcoming:
				date = "upcoming"
				if res.Period.ExpectedDate != "" {
					date = "expected " + res.Period.ExpectedDate
				}
			case res.Period.Date != "":
				date = res.Period.Date
				if res.Period.Time != "" {
					date += " (" + res.Period.Time + ")"
				}
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Ref().Ticker, c.Name, latest, date)
	}
	w.Flush()
	return 0
}

func runListReports(a *app.App) int {
	reports, err := report.ListReports(a.ReportService.Dir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list reports: %v\n", err)
		return 1
	}
	if len(reports) == 0 {
		fmt.Printf("No reports in %s\n", a.ReportService.Dir())
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODIFIED\tKIND\tTICKERS\tPERIOD\tSIZE\tFILE")
	for _, r := range reports {
		period := strings.TrimSpace(r.Quarter + " " + r.Year)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d KB\t%s\n",
			time.Unix(r.Modified, 0).Format("2006-01-02 15:04"),
			r.Kind,
			strings.Join(r.Tickers, ","),
			period,
			(r.Size+1023)/1024,
			r.Name)
	}
	w.Flush()
	return 0
}

func runSendReport(ctx context.Context, a *app.App, path string) int {
	if a.MailService == nil {
		fmt.Fprintln(os.Stderr, "Email is not configured")
		return 1
	}
	info := report.ParseFilename(filepath.Base(path))
	if err := a.MailService.SendReport(ctx, path, info.Tickers); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send %s: %v\n", path, err)
		return 1
	}
	fmt.Printf("Sent %s\n", path)
	return 0
}

func runSendLatest(ctx context.Context, a *app.App, ticker string) int {
	info, err := report.LatestReport(a.ReportService.Dir(), ticker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return runSendReport(ctx, a, info.Path)
}

func runHistory(ctx context.Context, a *app.App, limit int) int {
	if a.RunStorage == nil {
		fmt.Fprintln(os.Stderr, "Run history is disabled")
		return 1
	}
	runs, err := a.RunStorage.ListRuns(ctx, "", limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read run history: %v\n", err)
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tMODE\tTICKERS\tPERIOD\tSTATUS\tDETAIL")
	for _, r := range runs {
		detail := filepath.Base(r.ReportPath)
		if r.Status == models.RunStatusFailed {
			detail = string(r.ErrorKind) + ": " + r.Error
		} else if r.ReportPath == "" {
			detail = "-"
		}
		if r.Shortened {
			detail += " (shortened)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Mode,
			strings.Join(r.Tickers, ","),
			strings.TrimSpace(r.Quarter+" "+r.Year),
			r.Status,
			detail)
	}
	w.Flush()
	return 0
}

func runGmailAuth(ctx context.Context, a *app.App) int {
	if a.MailService == nil {
		fmt.Fprintln(os.Stderr, "Email is not configured")
		return 1
	}
	authURL, err := a.MailService.AuthURL()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gmail authorization unavailable: %v\n", err)
		return 1
	}

	fmt.Printf("Open this URL in a browser and approve access:\n\n%s\n\nPaste the authorization code: ", authURL)
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && strings.TrimSpace(code) == "" {
		fmt.Fprintf(os.Stderr, "No code read: %v\n", err)
		return 1
	}
	if err := a.MailService.ExchangeCode(ctx, strings.TrimSpace(code)); err != nil {
		fmt.Fprintf(os.Stderr, "Authorization failed: %v\n", err)
		return 1
	}
	fmt.Println("Gmail token saved")
	return 0
}

func runSchedule(ctx context.Context, a *app.App) int {
	cfg := a.Config.Schedule
	if err := a.SchedulerService.Start(cfg.Cron, cfg.Tickers); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start scheduler: %v\n", err)
		return 1
	}
	logger.Info().
		Str("cron", cfg.Cron).
		Strs("tickers", cfg.Tickers).
		Str("next_run", a.SchedulerService.NextRun().Format(time.RFC3339)).
		Msg("Scheduler running - Press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received")

	if err := a.SchedulerService.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Scheduler stop failed")
	}
	if last, outcomes := a.SchedulerService.LastRun(); !last.IsZero() {
		logger.Info().Str("last_run", last.Format(time.RFC3339)).Msg("Last scheduled batch")
		printBatchSummary(outcomes)
	}
	return 0
}
