package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner to stderr and logs the resolved settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 60
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	fmt.Fprintf(os.Stderr, "\n%s\n", hr)
	fmt.Fprintf(os.Stderr, "%s  EARNINGS  quarterly release analysis%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "%s\n\n", hr)

	kvPad := 14
	kvLines := [][2]string{
		{"Version", GetVersion()},
		{"Environment", config.Environment},
		{"Provider", string(config.LLM.Provider)},
		{"Calendar", config.Calendar.Path},
		{"Storage", config.Storage.Root},
		{"Results", config.Results.Dir},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(os.Stderr, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n%s\n\n", hr)

	logger.Debug().
		Str("version", GetVersion()).
		Str("environment", config.Environment).
		Str("provider", string(config.LLM.Provider)).
		Str("calendar", config.Calendar.Path).
		Str("storage_root", config.Storage.Root).
		Str("results_dir", config.Results.Dir).
		Msg("Configuration resolved")
}
