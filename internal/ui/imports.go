package ui

import "github.com/gnomeskillet/kiosk/internal/event"

// Event is re-exported so presenters read naturally.
type Event = event.Event

// Re-export event types for convenience.
const (
	ScanComplete  = event.ScanComplete
	FolderCreated = event.FolderCreated
	FileCreated   = event.FileCreated
	FileUpdated   = event.FileUpdated
	FileSkipped   = event.FileSkipped
	FileFailed    = event.FileFailed
)
