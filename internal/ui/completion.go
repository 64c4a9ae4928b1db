package ui

import (
	"fmt"

	"github.com/gnomeskillet/kiosk/internal/stats"
)

// completionSummary builds a final summary line from a snapshot.
// Format: done ✓  created 3  updated 1  skipped 44  uploaded 2.1 MiB  time 3m 17s  errors 0
func completionSummary(snap stats.Snapshot) string {
	icon := "✓"
	if snap.Failed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  created %s  updated %s  skipped %s  uploaded %s  time %s",
		icon,
		FormatCount(snap.Created),
		FormatCount(snap.Updated),
		FormatCount(snap.Skipped),
		FormatBytes(snap.BytesUploaded),
		FormatDuration(snap.Elapsed),
	)

	if snap.FoldersCreated > 0 {
		base += fmt.Sprintf("  folders %s", FormatCount(snap.FoldersCreated))
	}

	base += fmt.Sprintf("  errors %d", snap.Failed)

	return base
}
