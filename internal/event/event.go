package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	// Tag write protocol events.
	RunStarted Type = iota + 1
	ReadPrompt
	TagRead
	WriteStarted
	WriteDone
	VerifyPrompt
	Verified
	VerifyMismatch
	RunCancelled
	RunFailed

	// Upload sync events.
	ScanComplete
	FolderCreated
	FileCreated
	FileUpdated
	FileSkipped
	FileFailed
)

var typeNames = [...]string{
	RunStarted:     "RunStarted",
	ReadPrompt:     "ReadPrompt",
	TagRead:        "TagRead",
	WriteStarted:   "WriteStarted",
	WriteDone:      "WriteDone",
	VerifyPrompt:   "VerifyPrompt",
	Verified:       "Verified",
	VerifyMismatch: "VerifyMismatch",
	RunCancelled:   "RunCancelled",
	RunFailed:      "RunFailed",
	ScanComplete:   "ScanComplete",
	FolderCreated:  "FolderCreated",
	FileCreated:    "FileCreated",
	FileUpdated:    "FileUpdated",
	FileSkipped:    "FileSkipped",
	FileFailed:     "FileFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Terminal reports whether the event ends a tag write protocol run.
func (t Type) Terminal() bool {
	switch t {
	case Verified, VerifyMismatch, RunCancelled, RunFailed:
		return true
	}
	return false
}

// Event represents a single progress event from a protocol run or a sync run.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // relative path (sync) or file/folder name
	UID       string // tag hardware UID (tag events)
	Payload   string // cleaned tag payload (tag events)
	Size      int64  // file size in bytes
	Total     int64  // total files (ScanComplete)
	TotalSize int64  // total bytes (ScanComplete)
	Err       error
}

// New returns an Event of the given type stamped with the current time.
func New(t Type) Event {
	return Event{Type: t, Timestamp: time.Now()}
}
