package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/csheth/intelscout/internal/intel"
	"github.com/csheth/intelscout/internal/logging"
	"github.com/csheth/intelscout/internal/tui"
)

func main() {
	_ = godotenv.Load()

	endpoint := flag.String("endpoint", envOr("INTELSCOUT_ENDPOINT", "http://localhost:8000"), "base URL of the query service")
	reportFile := flag.String("report-file", "", "open a local report (.md, .txt or .pdf) instead of querying the service")
	cacheDir := flag.String("cache-dir", "", "override the report cache directory")
	logFile := flag.String("log-file", envOr("INTELSCOUT_LOG_FILE", ""), "write a JSON debug log to this file")
	debug := flag.Bool("debug", false, "log at debug level")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	flag.Parse()

	logger := logging.NewFileLogger(*logFile, *debug)
	defer logger.Sync()

	client, err := intel.New(intel.Config{
		BaseURL:  *endpoint,
		CacheDir: *cacheDir,
		Logger:   logger,
	})
	if err != nil {
		fmt.Println("failed to initialize the query client:", err)
		os.Exit(1)
	}

	opts := []tea.ProgramOption{}
	if !*noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Service:    client,
			Logger:     logger,
			ReportFile: *reportFile,
		}),
		opts...,
	)

	if _, err := program.Run(); err != nil {
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
