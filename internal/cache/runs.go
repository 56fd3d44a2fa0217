package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Norgate-AV/alv/internal/models"
)

const (
	runsFile = "runs.db"

	// runsBucket is the BoltDB bucket name for archived test runs
	runsBucket = "runs"
)

// ErrNotTerminal is returned when archiving a run that can still change.
var ErrNotTerminal = errors.New("test run is not in a terminal state")

// RunArchive stores finished test runs. A terminal run never changes, so an
// archived copy can answer later polls without invoking the tool.
//
// The database is opened for each operation and closed again, so the file
// lock is only held while an operation runs and several processes can share
// one project cache. Lookups take the shared read-only lock.
type RunArchive struct {
	path string
}

// OpenRunArchive creates the archive in dir when it does not exist yet
func OpenRunArchive(dir string) (*RunArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	a := &RunArchive{path: filepath.Join(dir, runsFile)}

	err := a.update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run archive bucket: %w", err)
	}

	return a, nil
}

// Close is a no-op kept for callers that manage the archive's lifetime; no
// handle stays open between operations.
func (a *RunArchive) Close() error {
	return nil
}

func (a *RunArchive) open(readOnly bool) (*bbolt.DB, error) {
	db, err := bbolt.Open(a.path, 0o600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive: %w", err)
	}

	return db, nil
}

func (a *RunArchive) view(fn func(tx *bbolt.Tx) error) error {
	db, err := a.open(true)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(fn)
}

func (a *RunArchive) update(fn func(tx *bbolt.Tx) error) error {
	db, err := a.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(fn)
}

// Get returns the archived run, or nil on a miss
func (a *RunArchive) Get(runID string) (*models.TestRun, error) {
	var run *models.TestRun

	err := a.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		if b == nil {
			return nil
		}

		data := b.Get([]byte(runID))
		if data == nil {
			return nil
		}

		run = &models.TestRun{}
		return json.Unmarshal(data, run)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read archived run %s: %w", runID, err)
	}

	return run, nil
}

// Put archives a terminal run
func (a *RunArchive) Put(run *models.TestRun) error {
	if run == nil || !run.Status.Terminal() {
		return ErrNotTerminal
	}

	data, err := json.Marshal(run)
	if err != nil {
		return err
	}

	err = a.update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		if err != nil {
			return err
		}

		return b.Put([]byte(run.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to archive run %s: %w", run.ID, err)
	}

	return nil
}

// Count returns the number of archived runs
func (a *RunArchive) Count() (int, error) {
	var n int

	err := a.view(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(runsBucket)); b != nil {
			n = b.Stats().KeyN
		}

		return nil
	})

	return n, err
}

// Clear removes every archived run
func (a *RunArchive) Clear() error {
	return a.update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(runsBucket)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}

		_, err := tx.CreateBucket([]byte(runsBucket))
		return err
	})
}
