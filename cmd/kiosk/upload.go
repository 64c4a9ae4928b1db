package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gnomeskillet/kiosk/internal/config"
	"github.com/gnomeskillet/kiosk/internal/engine"
	"github.com/gnomeskillet/kiosk/internal/event"
	"github.com/gnomeskillet/kiosk/internal/journal"
	"github.com/gnomeskillet/kiosk/internal/locator"
	"github.com/gnomeskillet/kiosk/internal/remote/drive"
	"github.com/gnomeskillet/kiosk/internal/stats"
	"github.com/gnomeskillet/kiosk/internal/ui"
)

const dayLayout = "2006-01-02"

var dayNamePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func newUploadCmd(opts *rootOpts) *cobra.Command {
	var (
		baseDir     string
		parentID    string
		credsFile   string
		journalFile string
		refreshExts []string
		dryRun      bool
		noProgress  bool
		every       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "upload [DATE]",
		Short: "Upload a day folder of kiosk data to Google Drive",
		Long: `Upload mirrors one dated folder (YYYY-MM-DD) from the kiosk data
directory into Google Drive. Folders are matched by name and created when
missing; files are created when new, skipped when already present, and
refreshed in place when their extension is in the refresh class (the
sign-in sheets that grow during the day).

DATE defaults to today. The data directory is discovered on removable
media unless --base or the config file pins it. With --every the upload
repeats on that interval until interrupted.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var dayArg string
			if len(args) == 1 {
				if _, err := time.Parse(dayLayout, args[0]); err != nil {
					return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", args[0])
				}
				dayArg = args[0]
			}

			base, err := resolveBase(baseDir, opts.cfg.Upload)
			if err != nil {
				return fmt.Errorf("locate data dir: %w", err)
			}
			parent := firstOf(parentID, opts.cfg.Upload.ParentFolderID, "")
			if parent == "" {
				return errors.New("no Drive parent folder id; set --parent, upload.parent_folder_id, or KIOSK_PARENT_FOLDER_ID")
			}
			creds := firstOf(credsFile, opts.cfg.Upload.CredentialsFile, defaultCredentialsPath())
			refresh := refreshExts
			if len(refresh) == 0 {
				refresh = opts.cfg.Upload.RefreshExts
			}
			if len(refresh) == 0 {
				refresh = []string{".csv"}
			}

			up := &uploader{
				base:        base,
				parent:      parent,
				creds:       creds,
				journalFile: firstOf(journalFile, opts.cfg.Upload.JournalFile, ""),
				refresh:     refresh,
				dryRun:      dryRun,
				quiet:       opts.quiet,
				noProgress:  noProgress,
			}

			day := dayArg
			if day == "" {
				day = time.Now().Format(dayLayout)
			}
			if err := up.runOnce(ctx, day); err != nil || every == 0 {
				return err
			}

			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return &exitError{code: 130}
				case <-ticker.C:
					day := dayArg
					if day == "" {
						day = time.Now().Format(dayLayout)
					}
					if err := up.runOnce(ctx, day); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&baseDir, "base", "", "kiosk data directory (default: auto-detect removable media)")
	cmd.Flags().StringVar(&parentID, "parent", "", "Drive folder id receiving day folders")
	cmd.Flags().StringVar(&credsFile, "credentials", "", "service account JSON key (default "+defaultCredentialsPath()+")")
	cmd.Flags().StringVar(&journalFile, "journal", "", "record runs in this bbolt journal file")
	cmd.Flags().StringSliceVar(&refreshExts, "refresh", nil, "extensions re-uploaded in place when already present (default .csv)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify files without uploading")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable periodic progress output")
	cmd.Flags().DurationVar(&every, "every", 0, "repeat the upload on this interval (e.g. 15m)")
	return cmd
}

type uploader struct {
	base        string
	parent      string
	creds       string
	journalFile string
	refresh     []string
	dryRun      bool
	quiet       bool
	noProgress  bool
}

func (u *uploader) runOnce(ctx context.Context, day string) error {
	dayDir := filepath.Join(u.base, day)
	if info, err := os.Stat(dayDir); err != nil || !info.IsDir() {
		reportMissingDay(os.Stderr, day, u.base)
		return &exitError{code: 1}
	}

	client, err := drive.New(drive.Options{CredentialsFile: u.creds})
	if err != nil {
		return exitOn(err, "drive client")
	}

	var dayID string
	if u.dryRun {
		// Resolve without creating, like the rest of a dry run.
		children, err := client.ListChildren(ctx, u.parent, day)
		if err != nil {
			return exitOn(err, "resolve day folder "+day)
		}
		dayID = engine.DryRunID(day)
		for _, child := range children {
			if child.IsFolder() {
				dayID = child.ID
				break
			}
		}
	} else {
		var created bool
		dayID, created, err = engine.NewFolderIndex(client).EnsureFolder(ctx, day, u.parent)
		if err != nil {
			return exitOn(err, "ensure day folder "+day)
		}
		if created {
			slog.Info("created day folder", "day", day, "id", dayID)
		}
	}

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)
	presenter := ui.NewPresenter(ui.Config{
		Writer:     os.Stdout,
		ErrWriter:  os.Stderr,
		Stats:      collector,
		Quiet:      u.quiet,
		NoProgress: u.noProgress,
	})

	engineCfg := engine.Config{
		LocalDir:       dayDir,
		RemoteParentID: dayID,
		RefreshExts:    u.refresh,
		Store:          client,
		Stats:          collector,
		Events:         events,
		DryRun:         u.dryRun,
	}

	var jr *journal.Run
	if u.journalFile != "" && !u.dryRun {
		j, err := journal.Open(u.journalFile)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		jr, err = j.StartRun(day)
		if err != nil {
			return fmt.Errorf("start journal run: %w", err)
		}
		engineCfg.Journal = jr
	}

	slog.Debug("starting upload", "day", day, "dir", dayDir, "dry_run", u.dryRun)

	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		_ = presenter.Run(events)
	}()

	result := engine.Run(ctx, engineCfg)
	close(events)
	presenterWg.Wait()

	if jr != nil {
		if err := jr.Finish(result.Err); err != nil {
			slog.Warn("journal finish failed", "error", err)
		}
	}

	if !u.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(os.Stdout, summary)
		}
	}

	if result.Err != nil {
		if errors.Is(result.Err, context.Canceled) {
			return &exitError{code: 130}
		}
		slog.Error("upload failed", "day", day, "error", result.Err)
		return &exitError{code: 1}
	}
	return nil
}

func reportMissingDay(w io.Writer, day, base string) {
	fmt.Fprintf(w, "day folder %s not found under %s\n", day, base)
	if days := availableDays(base); len(days) > 0 {
		fmt.Fprintf(w, "available days: %s\n", joinDays(days))
	} else {
		fmt.Fprintln(w, "no day folders found")
	}
}

// exitOn maps an interrupted step to the interrupt exit code.
func exitOn(err error, step string) error {
	if errors.Is(err, context.Canceled) {
		return &exitError{code: 130}
	}
	return fmt.Errorf("%s: %w", step, err)
}

// availableDays lists the dated folders under base, oldest first.
func availableDays(base string) []string {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil
	}
	var days []string
	for _, e := range entries {
		if e.IsDir() && dayNamePattern.MatchString(e.Name()) {
			days = append(days, e.Name())
		}
	}
	sort.Strings(days)
	return days
}

func joinDays(days []string) string {
	const show = 10
	if len(days) <= show {
		return strings.Join(days, ", ")
	}
	return fmt.Sprintf("%s (+%d earlier)", strings.Join(days[len(days)-show:], ", "), len(days)-show)
}

func resolveBase(flagBase string, cfg config.UploadConfig) (string, error) {
	if flagBase != "" {
		return flagBase, nil
	}
	if cfg.BaseDir != nil && *cfg.BaseDir != "" {
		return *cfg.BaseDir, nil
	}
	return locator.Locator{}.Base()
}

// defaultCredentialsPath is the service account key beside the config file.
func defaultCredentialsPath() string {
	return filepath.Join(filepath.Dir(config.Path()), "drive_sa.json")
}
