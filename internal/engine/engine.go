// Package engine mirrors a local day folder to a remote folder tree: folders
// are resolved or created by name, files are classified create/update/skip and
// uploaded one at a time. The walk is deterministic (sorted by name), fully
// serialized, and never mutates the source tree.
package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gnomeskillet/kiosk/internal/event"
	"github.com/gnomeskillet/kiosk/internal/remote"
	"github.com/gnomeskillet/kiosk/internal/stats"
)

// dryRunIDPrefix marks folder ids fabricated during a dry run for remote
// folders that do not exist yet. Children of such folders are classified
// without touching the store.
const dryRunIDPrefix = "dry-run:"

// DryRunID returns the synthetic folder id a dry run uses for a remote
// folder that does not exist yet.
func DryRunID(name string) string { return dryRunIDPrefix + name }

// Recorder receives one record per classified file. The bbolt journal
// implements it; a nil Recorder disables journaling.
type Recorder interface {
	Record(relPath string, action string, size int64, opErr error) error
}

// Config describes a sync run.
type Config struct {
	// LocalDir is the local directory whose contents are mirrored.
	LocalDir string
	// RemoteParentID is the remote folder receiving the contents.
	RemoteParentID string
	// RefreshExts are the extensions whose remote copies are overwritten in
	// place when they already exist (the roster/log CSV class).
	RefreshExts []string

	Store   remote.Store
	Stats   *stats.Collector
	Events  chan<- event.Event
	Journal Recorder
	DryRun  bool
}

// Result is the outcome of a sync run. Stats reflects everything classified
// before the run ended, even when Err is set.
type Result struct {
	Stats stats.Snapshot
	Err   error
}

type syncer struct {
	cfg     Config
	index   *FolderIndex
	decider *Decider
}

// Run executes a sync run, blocking until complete. The first failing remote
// operation aborts the run; counters accumulated so far are preserved in the
// Result.
func Run(ctx context.Context, cfg Config) Result {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}

	info, err := os.Stat(cfg.LocalDir)
	if err != nil {
		return Result{Stats: cfg.Stats.Snapshot(), Err: fmt.Errorf("local dir: %w", err)}
	}
	if !info.IsDir() {
		return Result{Stats: cfg.Stats.Snapshot(), Err: fmt.Errorf("local dir %s is not a directory", cfg.LocalDir)}
	}

	files, bytes, err := countTree(cfg.LocalDir)
	if err != nil {
		return Result{Stats: cfg.Stats.Snapshot(), Err: fmt.Errorf("scan %s: %w", cfg.LocalDir, err)}
	}
	cfg.Stats.SetTotals(files, bytes)
	emit(cfg.Events, event.Event{
		Type: event.ScanComplete, Path: cfg.LocalDir, Total: files, TotalSize: bytes,
	})

	s := &syncer{
		cfg:     cfg,
		index:   NewFolderIndex(cfg.Store),
		decider: NewDecider(cfg.Store, cfg.RefreshExts),
	}
	err = s.syncTree(ctx, cfg.LocalDir, cfg.RemoteParentID, "")
	return Result{Stats: cfg.Stats.Snapshot(), Err: err}
}

// syncTree uploads the contents of localDir into the remote folder parentID.
func (s *syncer) syncTree(ctx context.Context, localDir, parentID, relPrefix string) error {
	// ReadDir returns entries sorted by name; the walk order and therefore
	// the log output is reproducible across runs.
	entries, err := os.ReadDir(localDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", localDir, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := filepath.Join(relPrefix, entry.Name())
		if entry.IsDir() {
			childID, err := s.ensureFolder(ctx, entry.Name(), parentID, rel)
			if err != nil {
				return err
			}
			if err := s.syncTree(ctx, filepath.Join(localDir, entry.Name()), childID, rel); err != nil {
				return err
			}
			continue
		}

		if err := s.syncFile(ctx, filepath.Join(localDir, entry.Name()), entry, parentID, rel); err != nil {
			return err
		}
	}
	return nil
}

func (s *syncer) ensureFolder(ctx context.Context, name, parentID, rel string) (string, error) {
	if s.cfg.DryRun {
		// Under a folder that does not exist remotely there is nothing to
		// resolve; everything below classifies as a create.
		if strings.HasPrefix(parentID, dryRunIDPrefix) {
			return dryRunIDPrefix + rel, nil
		}
		// Resolve without creating; a missing folder maps to a throwaway id
		// so the walk can continue classifying files as creates.
		children, err := s.cfg.Store.ListChildren(ctx, parentID, name)
		if err != nil {
			return "", fmt.Errorf("folder %s: %w", rel, err)
		}
		for _, child := range children {
			if child.IsFolder() {
				return child.ID, nil
			}
		}
		return dryRunIDPrefix + rel, nil
	}

	id, created, err := s.index.EnsureFolder(ctx, name, parentID)
	if err != nil {
		return "", fmt.Errorf("folder %s: %w", rel, err)
	}
	if created {
		s.cfg.Stats.AddFoldersCreated(1)
		emit(s.cfg.Events, event.Event{Type: event.FolderCreated, Path: rel})
	}
	return id, nil
}

func (s *syncer) syncFile(ctx context.Context, path string, entry fs.DirEntry, parentID, rel string) error {
	info, err := entry.Info()
	if err != nil {
		return fmt.Errorf("stat %s: %w", rel, err)
	}
	size := info.Size()

	var (
		action     Action
		existingID string
	)
	if s.cfg.DryRun && strings.HasPrefix(parentID, dryRunIDPrefix) {
		action = ActionCreate
	} else {
		action, existingID, err = s.decider.Decide(ctx, entry.Name(), parentID)
		if err != nil {
			s.fileFailed(rel, size, err)
			return fmt.Errorf("decide %s: %w", rel, err)
		}
	}

	if !s.cfg.DryRun {
		if err := s.perform(ctx, action, path, entry.Name(), parentID, existingID, size); err != nil {
			s.fileFailed(rel, size, err)
			return fmt.Errorf("upload %s: %w", rel, err)
		}
	}

	s.record(rel, action.String(), size, nil)
	switch action {
	case ActionCreate:
		s.cfg.Stats.AddCreated(1)
		s.cfg.Stats.AddBytesUploaded(size)
		emit(s.cfg.Events, event.Event{Type: event.FileCreated, Path: rel, Size: size})
	case ActionUpdate:
		s.cfg.Stats.AddUpdated(1)
		s.cfg.Stats.AddBytesUploaded(size)
		emit(s.cfg.Events, event.Event{Type: event.FileUpdated, Path: rel, Size: size})
	case ActionSkip:
		s.cfg.Stats.AddSkipped(1)
		emit(s.cfg.Events, event.Event{Type: event.FileSkipped, Path: rel, Size: size})
	}
	return nil
}

func (s *syncer) perform(ctx context.Context, action Action, path, name, parentID, existingID string, size int64) error {
	if action == ActionSkip {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	mimeType := ContentType(name)
	if action == ActionUpdate {
		return s.cfg.Store.UpdateFile(ctx, existingID, f, size, mimeType)
	}
	_, err = s.cfg.Store.CreateFile(ctx, name, parentID, f, size, mimeType)
	return err
}

func (s *syncer) fileFailed(rel string, size int64, err error) {
	s.cfg.Stats.AddFailed(1)
	s.record(rel, "failed", size, err)
	emit(s.cfg.Events, event.Event{Type: event.FileFailed, Path: rel, Size: size, Err: err})
}

func (s *syncer) record(rel, action string, size int64, opErr error) {
	if s.cfg.Journal == nil {
		return
	}
	// Journal failures must not abort an otherwise healthy upload.
	_ = s.cfg.Journal.Record(rel, action, size, opErr) //nolint:errcheck
}

func countTree(root string) (files, bytes int64, err error) {
	err = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		bytes += info.Size()
		return nil
	})
	return files, bytes, err
}

func emit(events chan<- event.Event, ev event.Event) {
	if events == nil {
		return
	}
	ev.Timestamp = time.Now()
	events <- ev
}
