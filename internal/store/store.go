// Package store implements atomic, crash-consistent persistence of a
// single project's playbook file, plus backup/restore.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/pathutil"
	"github.com/playbookhq/engine/internal/perrors"
)

// DefaultBackupKeep is the number of most recent backups retained.
const DefaultBackupKeep = 3

// Storage implements atomic read/write of one project's playbook file.
// It is safe for concurrent use by multiple Storage instances across
// processes that additionally coordinate through an external file lock
// (see internal/lockfile) — Storage itself performs no locking; callers
// serialize read-modify-write sequences.
type Storage struct {
	path       string
	backupDir  string
	backupKeep int
}

// Option configures a Storage.
type Option func(*Storage)

// WithBackupKeep overrides the number of retained backups (default 3).
func WithBackupKeep(n int) Option {
	return func(s *Storage) {
		if n > 0 {
			s.backupKeep = n
		}
	}
}

// New creates a Storage rooted at path, with backups kept in a sibling
// "backups" directory.
func New(path string, opts ...Option) *Storage {
	s := &Storage{
		path:       path,
		backupDir:  filepath.Join(filepath.Dir(path), "backups"),
		backupKeep: DefaultBackupKeep,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the live playbook file path.
func (s *Storage) Path() string { return s.path }

// BackupDir returns the sibling directory backups are written to.
func (s *Storage) BackupDir() string { return s.backupDir }

// ListBackups returns backup file paths, most recent first.
func (s *Storage) ListBackups() ([]string, error) { return s.listBackups() }

// CreateBackup copies the live file into the backup directory under a
// timestamped name, independent of a Store call — for an operator-invoked
// backup command rather than the automatic pre-write backup Store takes.
func (s *Storage) CreateBackup() error {
	if err := s.backupLive(); err != nil {
		return fmt.Errorf("creating backup: %w", err)
	}
	return s.rotateBackups()
}

// Fingerprint returns a content hash of the live playbook file, or
// "absent" if it does not exist yet. TriggerHandlers uses it to detect
// whether the playbook mutated between an initial load and a subsequent
// re-acquire of the exclusive lock, per the concurrency design's rebase
// rule.
func (s *Storage) Fingerprint() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "absent", nil
		}
		return "", fmt.Errorf("reading playbook %s: %w", pathutil.RedactPath(s.path), err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Load reads the playbook file. If the file does not exist, it returns an
// empty playbook at the current schema version. On parse failure, it
// attempts to read the most recent sibling backup; if that also fails, it
// returns perrors.ErrCorruptPlaybook.
func (s *Storage) Load(ctx context.Context) (*models.Playbook, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Empty(), nil
		}
		return nil, fmt.Errorf("reading playbook %s: %w", pathutil.RedactPath(s.path), err)
	}

	pb, parseErr := parsePlaybook(data)
	if parseErr == nil {
		return pb, nil
	}

	// Primary file is corrupt; fall back to the most recent backup.
	backups, listErr := s.listBackups()
	if listErr != nil || len(backups) == 0 {
		return nil, fmt.Errorf("%w: %v", perrors.ErrCorruptPlaybook, parseErr)
	}
	latest := backups[0]
	backupData, readErr := os.ReadFile(latest)
	if readErr != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrCorruptPlaybook, parseErr)
	}
	pb, backupParseErr := parsePlaybook(backupData)
	if backupParseErr != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrCorruptPlaybook, backupParseErr)
	}
	return pb, nil
}

func parsePlaybook(data []byte) (*models.Playbook, error) {
	var pb models.Playbook
	if err := json.Unmarshal(data, &pb); err != nil {
		return nil, err
	}
	return &pb, nil
}

// Store validates playbook invariants, then atomically replaces the live
// file: write to a temporary sibling file, fsync, rename over the live
// path. The previous live file is preserved as a timestamped backup
// before the rename, and old backups beyond backupKeep are pruned.
//
// Any I/O error aborts the write and leaves the live file untouched — the
// temp-file-then-rename discipline makes a torn write impossible.
func (s *Storage) Store(ctx context.Context, pb *models.Playbook) error {
	if err := Validate(pb); err != nil {
		return fmt.Errorf("%w: %v", perrors.ErrInvariantViolation, err)
	}

	pb.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(pb, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding playbook: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating playbook directory: %w", err)
	}

	if err := s.backupLive(); err != nil {
		return fmt.Errorf("backing up playbook: %w", err)
	}

	if err := atomicWrite(dir, s.path, data); err != nil {
		return fmt.Errorf("writing playbook: %w", err)
	}

	return s.rotateBackups()
}

// atomicWrite writes data to a temp file in dir, fsyncs it, and renames it
// over path. The temp file must live in the same directory as path so the
// rename is guaranteed atomic at the filesystem level.
func atomicWrite(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".playbook-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// backupLive copies the current live file (if any) into the backup
// directory under a timestamped name, before it is overwritten.
func (s *Storage) backupLive() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(s.backupDir, 0o700); err != nil {
		return err
	}
	name := fmt.Sprintf("playbook-backup-%s.json", time.Now().UTC().Format("20060102-150405.000000000"))
	dest := filepath.Join(s.backupDir, name)
	return atomicWrite(s.backupDir, dest, data)
}

func (s *Storage) listBackups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	// Timestamp-encoded names sort descending == most recent first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(s.backupDir, n)
	}
	return paths, nil
}

func (s *Storage) rotateBackups() error {
	backups, err := s.listBackups()
	if err != nil {
		return err
	}
	if len(backups) <= s.backupKeep {
		return nil
	}
	for _, stale := range backups[s.backupKeep:] {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Snapshot returns a deep copy of pb suitable for later Restore.
func (s *Storage) Snapshot(pb *models.Playbook) *models.Playbook {
	return pb.Clone()
}

// Restore returns the snapshot unchanged — the caller replaces its working
// playbook with this value. Restore never touches disk; it exists to make
// the bracket-a-migration-in-a-rollback-scope usage explicit at call sites
// (Reflector.ApplyResult does not use it; it works on its own pb.Clone()).
func (s *Storage) Restore(snapshot *models.Playbook) *models.Playbook {
	return snapshot.Clone()
}
