package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/gnomeskillet/kiosk/internal/stats"
)

// plainPresenter outputs one line per classified file to stdout,
// and periodic progress to stderr.
type plainPresenter struct {
	w          io.Writer
	errW       io.Writer
	stats      *stats.Collector
	noProgress bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	// The collector's throughput ring expects one sample per second.
	sample := time.NewTicker(time.Second)
	defer sample.Stop()
	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-sample.C:
			p.stats.Tick()
		case <-progress.C:
			if !p.noProgress {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case ScanComplete:
		fmt.Fprintf(p.errW, "scan: %s files, %s\n", FormatCount(ev.Total), FormatBytes(ev.TotalSize))
	case FolderCreated:
		fmt.Fprintf(p.w, "%s/  created\n", ev.Path)
	case FileCreated:
		fmt.Fprintf(p.w, "%s  %s  created\n", ev.Path, FormatBytes(ev.Size))
	case FileUpdated:
		fmt.Fprintf(p.w, "%s  %s  updated\n", ev.Path, FormatBytes(ev.Size))
	case FileSkipped:
		fmt.Fprintf(p.w, "%s  skipped\n", ev.Path)
	case FileFailed:
		errMsg := "error"
		if ev.Err != nil {
			errMsg = ev.Err.Error()
		}
		fmt.Fprintf(p.w, "%s  %s  %s\n", ev.Path, FormatBytes(ev.Size), errMsg)
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.FilesTotal > 0 {
		pct := float64(snap.Visited()) / float64(snap.FilesTotal) * 100
		speed := p.stats.RollingSpeed(10)
		fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s files %s/%s %s eta %s\n",
			pct,
			FormatCount(snap.Visited()), FormatCount(snap.FilesTotal),
			FormatBytes(snap.BytesUploaded), FormatBytes(snap.BytesTotal),
			FormatRate(speed),
			FormatETA(p.stats.ETA()),
		)
	} else {
		fmt.Fprintf(p.errW, "progress: %s files %s uploaded\n",
			FormatCount(snap.Visited()),
			FormatBytes(snap.BytesUploaded),
		)
	}
}

func (p *plainPresenter) Summary() string {
	return completionSummary(p.stats.Snapshot())
}
