// Package journal keeps a per-run audit trail of upload outcomes in a local
// bbolt database, so an operator can answer "what actually went up on the
// 29th?" without trusting the remote listing.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const runsBucket = "runs"

// Journal is an append-only record of sync runs. One bucket per run, keyed by
// a run id, holding a meta entry plus one entry per classified file.
type Journal struct {
	db *bbolt.DB
}

// RunMeta describes a single sync run.
type RunMeta struct {
	ID       string    `json:"id"`
	DayName  string    `json:"day"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
	Err      string    `json:"err,omitempty"`
}

// FileRecord is one classified file within a run.
type FileRecord struct {
	RelPath string    `json:"rel_path"`
	Action  string    `json:"action"`
	Size    int64     `json:"size"`
	Err     string    `json:"err,omitempty"`
	At      time.Time `json:"at"`
}

// Open opens (creating if needed) the journal database at path. The open
// times out so two kiosk processes fighting over the file fail fast instead
// of deadlocking.
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// Run is an in-progress sync run within the journal. It implements the
// engine's Recorder contract.
type Run struct {
	j    *Journal
	meta RunMeta
	seq  uint64
}

// StartRun opens a new run bucket for the named day folder.
func (j *Journal) StartRun(dayName string) (*Run, error) {
	meta := RunMeta{
		ID:      uuid.NewString(),
		DayName: dayName,
		Started: time.Now(),
	}

	err := j.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		b, err := runs.CreateBucket([]byte(meta.ID))
		if err != nil {
			return err
		}
		return putJSON(b, "meta", meta)
	})
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return &Run{j: j, meta: meta}, nil
}

// Record appends one file outcome to the run.
func (r *Run) Record(relPath, action string, size int64, opErr error) error {
	rec := FileRecord{
		RelPath: relPath,
		Action:  action,
		Size:    size,
		At:      time.Now(),
	}
	if opErr != nil {
		rec.Err = opErr.Error()
	}

	r.seq++
	key := fmt.Sprintf("file:%08d", r.seq)
	err := r.j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket)).Bucket([]byte(r.meta.ID))
		if b == nil {
			return fmt.Errorf("run %s vanished", r.meta.ID)
		}
		return putJSON(b, key, rec)
	})
	if err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	return nil
}

// Finish stamps the run as complete, recording the run error if any.
func (r *Run) Finish(runErr error) error {
	r.meta.Finished = time.Now()
	if runErr != nil {
		r.meta.Err = runErr.Error()
	}

	err := r.j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket)).Bucket([]byte(r.meta.ID))
		if b == nil {
			return fmt.Errorf("run %s vanished", r.meta.ID)
		}
		return putJSON(b, "meta", r.meta)
	})
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Runs returns the metadata of all recorded runs, in bucket order.
func (j *Journal) Runs() ([]RunMeta, error) {
	var out []RunMeta
	err := j.db.View(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		return runs.ForEachBucket(func(k []byte) error {
			b := runs.Bucket(k)
			raw := b.Get([]byte("meta"))
			if raw == nil {
				return nil
			}
			var meta RunMeta
			if err := json.Unmarshal(raw, &meta); err != nil {
				return err
			}
			out = append(out, meta)
			return nil
		})
	})
	return out, err
}

// Files returns the file records of a run in the order they were written.
func (j *Journal) Files(runID string) ([]FileRecord, error) {
	var out []FileRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket)).Bucket([]byte(runID))
		if b == nil {
			return fmt.Errorf("unknown run %s", runID)
		}
		return b.ForEach(func(k, v []byte) error {
			if string(k) == "meta" {
				return nil
			}
			var rec FileRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}
