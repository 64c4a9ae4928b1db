package engine

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gnomeskillet/kiosk/internal/remote"
)

// Action classifies what to do with a single local file.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionSkip
)

var actionNames = [...]string{
	ActionCreate: "create",
	ActionUpdate: "update",
	ActionSkip:   "skip",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// Decider decides create/update/skip per file. Files whose extension is in the
// refresh class (the roster/log CSVs) are overwritten in place when they
// already exist remotely; anything else already present is left alone so
// photos never get clobbered.
type Decider struct {
	store   remote.Store
	refresh map[string]bool
}

// NewDecider builds a Decider. Extensions are matched case-insensitively and
// may be given with or without the leading dot.
func NewDecider(store remote.Store, refreshExts []string) *Decider {
	refresh := make(map[string]bool, len(refreshExts))
	for _, ext := range refreshExts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		refresh[ext] = true
	}
	return &Decider{store: store, refresh: refresh}
}

// Decide looks up name under remoteParentID and classifies the upload.
// For Update it also returns the id of the existing remote file (first match
// wins when duplicates exist).
func (d *Decider) Decide(ctx context.Context, name, remoteParentID string) (Action, string, error) {
	children, err := d.store.ListChildren(ctx, remoteParentID, name)
	if err != nil {
		return ActionSkip, "", err
	}
	if len(children) == 0 {
		return ActionCreate, "", nil
	}

	existing := children[0]
	if d.refresh[strings.ToLower(filepath.Ext(name))] {
		return ActionUpdate, existing.ID, nil
	}
	return ActionSkip, existing.ID, nil
}

// kioskTypes pins MIME types for the files the kiosk actually produces, so
// uploads do not depend on the host's mime.types database.
var kioskTypes = map[string]string{
	".csv": "text/csv",
	".tsv": "text/tab-separated-values",
	".txt": "text/plain",
	".log": "text/plain",
	".jpg": "image/jpeg",
}

// ContentType guesses a MIME type from the file name, falling back to a
// generic binary type for unrecognized extensions.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := kioskTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
