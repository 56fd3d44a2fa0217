// Package cache persists per-org indices for the engine.
//
// The store keeps one JSON document per concern under the cache directory:
//
//  1. logs.json maps an org alias to its Record (log index, download tracking,
//     selected org)
//  2. testclasses.json maps an org alias to its test class index
//  3. orgs.json holds the categorized org list and its capture time
//
// Every mutation reads the whole document, patches one alias, and writes the
// whole document back. Writes are serialized within a Store; separate processes
// sharing a cache directory are not coordinated. Unreadable or corrupt documents
// are treated as empty.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/errs"
	"github.com/Norgate-AV/alv/internal/models"
)

const (
	// DefaultCacheDir is the default cache directory name
	DefaultCacheDir = ".alv-cache"

	// OrgListTTL is how long an org list snapshot stays usable. It is fixed.
	OrgListTTL = 24 * time.Hour

	logsFile    = "logs.json"
	classesFile = "testclasses.json"
	orgsFile    = "orgs.json"
)

// Store manages the JSON cache documents
type Store struct {
	mu     sync.Mutex
	root   string
	logger *zap.Logger
	now    func() time.Time
}

// New creates a new cache store
// If cacheDir is empty, uses DefaultCacheDir in current working directory
func New(cacheDir string, logger *zap.Logger) (*Store, error) {
	if cacheDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		cacheDir = filepath.Join(cwd, DefaultCacheDir)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	for _, name := range []string{logsFile, classesFile, orgsFile} {
		if err := createIfMissing(filepath.Join(cacheDir, name), []byte("{}\n")); err != nil {
			return nil, fmt.Errorf("failed to initialize %s: %w", name, err)
		}
	}

	return &Store{
		root:   cacheDir,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SetClock replaces the clock used for timestamps and TTL checks
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}

// Root returns the cache directory
func (s *Store) Root() string {
	return s.root
}

// Get returns the record for alias, or empty defaults if none was written
func (s *Store) Get(alias string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := readJSON[map[string]Record](s, logsFile)
	rec := doc[alias]
	rec.normalize()

	return rec
}

// Put applies patches to the record for alias and persists the whole document
func (s *Store) Put(alias string, patches ...Patch) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := readJSON[map[string]Record](s, logsFile)
	if doc == nil {
		doc = make(map[string]Record)
	}

	rec := doc[alias]
	rec.normalize()

	for _, p := range patches {
		p(&rec)
	}

	doc[alias] = rec
	if err := s.writeJSON(logsFile, doc); err != nil {
		return Record{}, fmt.Errorf("failed to store cache record: %w", err)
	}

	return rec, nil
}

// Clear removes every cached entry for alias, including downloaded bodies
func (s *Store) Clear(alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := readJSON[map[string]Record](s, logsFile)
	delete(logs, alias)
	if err := s.writeJSON(logsFile, nonNil(logs)); err != nil {
		return fmt.Errorf("failed to clear cache record: %w", err)
	}

	classes := readJSON[map[string]OrgTestClasses](s, classesFile)
	delete(classes, alias)
	if err := s.writeJSON(classesFile, nonNil(classes)); err != nil {
		return fmt.Errorf("failed to clear test classes: %w", err)
	}

	if err := os.RemoveAll(s.downloadDir(alias)); err != nil {
		return fmt.Errorf("failed to remove downloads: %w", err)
	}

	return nil
}

// ClearAll resets every document and removes downloaded bodies
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{logsFile, classesFile, orgsFile} {
		if err := s.writeJSON(name, struct{}{}); err != nil {
			return fmt.Errorf("failed to reset %s: %w", name, err)
		}
	}

	if err := os.RemoveAll(filepath.Join(s.root, downloadsDir)); err != nil {
		return fmt.Errorf("failed to remove downloads: %w", err)
	}

	return nil
}

// OrgSnapshot returns the cached org list if it is younger than ttl. An expired
// snapshot is reported as absent but left in place.
func (s *Store) OrgSnapshot(ttl time.Duration) (OrgSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := readJSON[OrgSnapshot](s, orgsFile)
	if snap.Timestamp == 0 {
		return OrgSnapshot{}, false
	}

	if s.now().Sub(snap.CapturedAt()) >= ttl {
		s.logger.Debug("Org list snapshot expired", zap.Time("captured_at", snap.CapturedAt()))
		return OrgSnapshot{}, false
	}

	return snap, true
}

// PutOrgSnapshot replaces the cached org list
func (s *Store) PutOrgSnapshot(list models.OrgList) (OrgSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := OrgSnapshot{Orgs: list, Timestamp: s.now().UnixMilli()}
	if err := s.writeJSON(orgsFile, snap); err != nil {
		return OrgSnapshot{}, fmt.Errorf("failed to store org list: %w", err)
	}

	return snap, nil
}

// TestClasses returns the cached test class index for alias
func (s *Store) TestClasses(alias string) (OrgTestClasses, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := readJSON[map[string]OrgTestClasses](s, classesFile)
	classes, ok := doc[alias]

	return classes, ok
}

// PutTestClasses replaces the test class index for alias
func (s *Store) PutTestClasses(alias string, classes []models.TestClass) (OrgTestClasses, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := readJSON[map[string]OrgTestClasses](s, classesFile)
	if doc == nil {
		doc = make(map[string]OrgTestClasses)
	}

	if classes == nil {
		classes = []models.TestClass{}
	}

	entry := OrgTestClasses{Classes: classes, Timestamp: s.now()}
	doc[alias] = entry

	if err := s.writeJSON(classesFile, doc); err != nil {
		return OrgTestClasses{}, fmt.Errorf("failed to store test classes: %w", err)
	}

	return entry, nil
}

// readJSON decodes a document, treating a missing or corrupt file as empty.
func readJSON[T any](s *Store, name string) T {
	var v T

	path := filepath.Join(s.root, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.corrupt(name, err)
		}

		return v
	}

	if err := json.Unmarshal(data, &v); err != nil {
		s.corrupt(name, err)

		var zero T
		return zero
	}

	return v
}

func (s *Store) corrupt(name string, err error) {
	s.logger.Warn("Treating unreadable cache document as empty",
		zap.String("file", name),
		zap.Error(errs.New(errs.CacheCorruption, "read cache", "cache document is unreadable", err)))
}

// writeJSON replaces a document in full through a temp file and rename.
func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(s.root, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	return nil
}

func createIfMissing(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}

		return err
	}

	defer f.Close()

	_, err = f.Write(content)

	return err
}

func nonNil[T any](m map[string]T) map[string]T {
	if m == nil {
		return make(map[string]T)
	}

	return m
}
