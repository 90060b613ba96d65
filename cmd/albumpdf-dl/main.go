// Command albumpdf-dl produces album PDFs from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/handiism/albumpdf/internal/config"
	"github.com/handiism/albumpdf/internal/download"
	"github.com/handiism/albumpdf/internal/logging"
	"github.com/handiism/albumpdf/internal/store"
)

// Version is set at build time.
var Version = "dev"

type globalFlags struct {
	configPath string
	baseDir    string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nInterrupted, cancelled.")
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "albumpdf-dl",
		Short: "Download remote image albums and assemble them into PDFs",
		Long: `albumpdf-dl downloads the pages of remote image albums and assembles
each album into a single PDF under the configured base directory.

Examples:
  # Download and assemble two albums
  albumpdf-dl produce 12345 67890

  # Rebuild a document even if it already exists
  albumpdf-dl produce 12345 --force --retries 5

  # Assemble every downloaded album that has no PDF yet
  albumpdf-dl assemble --all

  # Write a config file with the default settings
  albumpdf-dl config init albumpdf.yaml`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to config file (yaml or json)")
	pf.StringVar(&flags.baseDir, "base-dir", "", "Directory for pages and documents (overrides config)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Show verbose output")

	root.AddCommand(newProduceCmd(flags))
	root.AddCommand(newAssembleCmd(flags))
	root.AddCommand(newConfigCmd(flags))
	return root
}

// loadSettings reads the config file, applies flag overrides and sets up
// logging on stderr.
func loadSettings(flags *globalFlags) (*config.Settings, error) {
	settings, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if flags.baseDir != "" {
		settings.BaseDir = flags.baseDir
	}

	logCfg := config.LoggingSettings{Level: "warn", Format: "console"}
	if flags.verbose {
		logCfg.Level = "debug"
	}
	if err := logging.Setup(logCfg, os.Stderr); err != nil {
		return nil, err
	}
	return settings, nil
}

// openManager builds a Manager reporting to p. The returned func closes the
// job history.
func openManager(settings *config.Settings, p *printer) (*download.Manager, func(), error) {
	history, err := store.OpenHistory(settings.HistoryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening job history: %w", err)
	}
	manager, err := download.NewManager(settings, download.Options{
		History:    history,
		OnProgress: p.event,
	})
	if err != nil {
		history.Close()
		return nil, nil, err
	}
	return manager, func() { history.Close() }, nil
}
