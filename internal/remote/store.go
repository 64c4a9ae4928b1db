// Package remote defines the narrow contract the sync engine needs from a
// cloud store. The concrete Google Drive client lives in remote/drive.
package remote

import (
	"context"
	"io"
)

// FolderMimeType marks a node as a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// Node is a remote file or folder. Names are not unique remotely; callers
// address duplicates by taking the first match.
type Node struct {
	ID       string
	Name     string
	MimeType string
}

// IsFolder reports whether the node is a folder.
func (n Node) IsFolder() bool { return n.MimeType == FolderMimeType }

// Store is the remote side of a sync. Every call maps to one remote round
// trip; retry and timeout policy belong to the implementation's transport.
type Store interface {
	// ListChildren returns the non-trashed children of parentID. A non-empty
	// name restricts the listing to exact name matches.
	ListChildren(ctx context.Context, parentID, name string) ([]Node, error)

	// CreateFolder creates a folder under parentID and returns its id.
	CreateFolder(ctx context.Context, name, parentID string) (string, error)

	// CreateFile uploads a new file under parentID and returns its id.
	CreateFile(ctx context.Context, name, parentID string, r io.Reader, size int64, mimeType string) (string, error)

	// UpdateFile overwrites the content of an existing file in place,
	// preserving its remote identity.
	UpdateFile(ctx context.Context, id string, r io.Reader, size int64, mimeType string) error
}
