package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/gnomeskillet/kiosk/internal/config"
	"github.com/gnomeskillet/kiosk/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// rootOpts carries state shared by every subcommand: the loaded config file
// and the persistent flags that shape logging.
type rootOpts struct {
	configFile string
	verbose    bool
	quiet      bool
	logFile    string

	cfg      config.Config
	logClose func() error
}

func run() int {
	opts := &rootOpts{}

	rootCmd := &cobra.Command{
		Use:   "kiosk",
		Short: "Sign-in kiosk tooling: write student RFID tags and upload day folders to Drive",
		Long: `kiosk bundles the two sides of the sign-in station:

  write    search the student roster and encode ids onto RFID tags
  read     show what a tag currently holds
  upload   mirror a day folder (YYYY-MM-DD) of kiosk data into Google Drive

Configuration is read from ` + config.Path() + ` and can be overridden
per-flag. KIOSK_CREDENTIALS_FILE and KIOSK_PARENT_FOLDER_ID override the
upload credentials and destination.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.setup,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default "+config.Path()+")")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(newWriteCmd(opts))
	rootCmd.AddCommand(newReadCmd(opts))
	rootCmd.AddCommand(newUploadCmd(opts))
	rootCmd.AddCommand(newDocsCmd())
	rootCmd.AddCommand(newVersionCmd())

	err := rootCmd.Execute()
	if opts.logClose != nil {
		_ = opts.logClose()
	}
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// setup loads the config file and installs the default logger before any
// subcommand runs.
func (o *rootOpts) setup(*cobra.Command, []string) error {
	path := o.configFile
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	} else if !o.quiet {
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if ui.IsTTY(os.Stderr.Fd()) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	if o.logFile != "" {
		lf, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		o.logClose = lf.Close
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = ui.NewMultiHandler(handler, jsonHandler)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kiosk version",
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(os.Stdout, "kiosk %s\n", version)
		},
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
