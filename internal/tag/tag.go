// Package tag wraps read/write access to a proximity tag behind a narrow
// Reader interface. The physical antenna driver lives outside this process;
// implementations here only speak to its bridge device.
package tag

import (
	"errors"
	"fmt"
	"strings"
)

// padding is the sentinel byte used to pad tag payloads in storage.
const padding = "\x00"

// ErrNotReady indicates the reader hardware is unavailable or not initialized.
// Fatal for any tag operation; no retry.
var ErrNotReady = errors.New("tag reader not ready")

// ErrBusy indicates the reader handle is owned by an in-flight protocol run.
var ErrBusy = errors.New("tag reader busy")

// TransferError reports a single failed read or write attempt. The caller may
// start a new attempt; no retry happens below this layer.
type TransferError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("tag %s failed: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Clean strips the null-padding sentinel and surrounding whitespace from raw
// tag text. Idempotent.
func Clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, padding, ""))
}

// Reader is the blocking hardware contract. Read and Write block until a tag
// is presented or the hardware signals failure. Cleanup releases the hardware
// handle and must be called once per attempt, on every exit path.
type Reader interface {
	// Read blocks for a tag and returns its UID and raw (padded) text.
	Read() (uid string, text string, err error)
	// Write blocks for a tag and stores text on it.
	Write(text string) error
	// Cleanup releases the hardware handle. Safe after a failed operation.
	Cleanup()
}
