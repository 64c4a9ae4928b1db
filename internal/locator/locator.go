// Package locator finds the kiosk data directory on removable media.
package locator

import (
	"os"
	"os/user"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

// DataDirName is the directory created on whatever base is chosen.
const DataDirName = "signin_kiosk_data"

// Locator discovers a writable base for kiosk data. Zero value is usable;
// fields exist so tests can redirect the scan.
type Locator struct {
	// MediaRoots overrides the mount roots scanned for removable drives.
	MediaRoots []string
	// Preferred overrides the preferred mount checked before scanning.
	Preferred string
	// Fallback overrides the directory used when no mount qualifies.
	Fallback string
}

// Base returns the kiosk data directory, creating it if needed. The
// preferred USB mount wins when present and writable, then any writable
// auto-mounted drive, then a directory next to the executable.
func (l Locator) Base() (string, error) {
	if dir := l.preferred(); dir != "" {
		if base, err := ensure(dir); err == nil {
			return base, nil
		}
	}

	for _, root := range l.mediaRoots() {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			mount := filepath.Join(root, e.Name())
			if !writableDir(mount) {
				continue
			}
			if base, err := ensure(mount); err == nil {
				return base, nil
			}
		}
	}

	return ensure(l.fallback())
}

func (l Locator) preferred() string {
	if l.Preferred != "" {
		if writableDir(l.Preferred) {
			return l.Preferred
		}
		return ""
	}
	dir := filepath.Join("/media", username(), "USB")
	if writableDir(dir) {
		return dir
	}
	return ""
}

func (l Locator) mediaRoots() []string {
	if l.MediaRoots != nil {
		return l.MediaRoots
	}
	u := username()
	return []string{filepath.Join("/media", u), filepath.Join("/run/media", u)}
}

func (l Locator) fallback() string {
	if l.Fallback != "" {
		return l.Fallback
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func ensure(dir string) (string, error) {
	base := filepath.Join(dir, DataDirName)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	return base, nil
}

func writableDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	return unix.Access(path, unix.W_OK) == nil
}

func username() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
