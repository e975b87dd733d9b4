// Package backup keeps rotating snapshots of the goal so a delete or replace
// can be undone. Snapshots are JSON files of the goal keys, which works the
// same for every storage backend.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/goalstore"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/storage"
)

const (
	// MaxBackups is the maximum number of backups to keep
	MaxBackups = 14
	// BackupDirName is the name of the backup directory
	BackupDirName = "backups"
	// BackupFilePrefix is the prefix for backup files
	BackupFilePrefix = "daystreak-"
	// BackupFileSuffix is the suffix for backup files
	BackupFileSuffix = ".json"
)

var ErrInvalidBackup = errors.New("invalid backup file")

// Snapshot is the on-disk backup format.
type Snapshot struct {
	CreatedAt time.Time         `json:"created_at"`
	Source    string            `json:"source"`
	Goal      map[string]string `json:"goal"`
}

// BackupInfo contains information about a backup file
type BackupInfo struct {
	Path      string
	Timestamp time.Time
	Size      int64

	// seq orders backups created within the same second.
	seq int
}

// Manager handles backup operations
type Manager struct {
	provider  storage.Provider
	backupDir string
	clock     clockwork.Clock
}

func NewManager(provider storage.Provider, configDir string, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		provider:  provider,
		backupDir: filepath.Join(configDir, BackupDirName),
		clock:     clock,
	}
}

func (m *Manager) GetBackupDir() string {
	return m.backupDir
}

// CreateBackup snapshots the current goal keys and prunes old backups.
func (m *Manager) CreateBackup(ctx context.Context) (string, error) {
	return m.createBackup(ctx, false)
}

// skipRotation is set during restore so the pre-restore backup never evicts
// the file being restored.
func (m *Manager) createBackup(ctx context.Context, skipRotation bool) (string, error) {
	if err := os.MkdirAll(m.backupDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	prefs, err := m.provider.ReadAll(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read goal: %w", err)
	}

	now := m.clock.Now()
	path, err := m.uniquePath(now)
	if err != nil {
		return "", err
	}

	snap := Snapshot{
		CreatedAt: now,
		Source:    m.provider.GetConfigPath(),
		Goal:      goalKeys(prefs),
	}
	if err := writeSnapshot(path, snap); err != nil {
		return "", err
	}

	if !skipRotation {
		if err := m.rotateBackups(); err != nil {
			logger.Warn("failed to rotate old backups", "error", err)
		}
	}
	return path, nil
}

// uniquePath tries minute precision, then seconds, then a counter.
func (m *Manager) uniquePath(now time.Time) (string, error) {
	name := func(stamp string) string {
		return filepath.Join(m.backupDir, BackupFilePrefix+stamp+BackupFileSuffix)
	}

	path := name(now.Format("20060102-1504"))
	if !exists(path) {
		return path, nil
	}
	stamp := now.Format("20060102-150405")
	path = name(stamp)
	for counter := 1; exists(path); counter++ {
		if counter > 100 {
			return "", fmt.Errorf("failed to generate unique backup filename")
		}
		path = name(fmt.Sprintf("%s-%d", stamp, counter))
	}
	return path, nil
}

// ListBackups returns every backup, newest first.
func (m *Manager) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(m.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, BackupFilePrefix) || !strings.HasSuffix(name, BackupFileSuffix) {
			continue
		}
		ts, seq, ok := parseStamp(strings.TrimSuffix(strings.TrimPrefix(name, BackupFilePrefix), BackupFileSuffix))
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:      filepath.Join(m.backupDir, name),
			Timestamp: ts,
			Size:      info.Size(),
			seq:       seq,
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].seq > backups[j].seq
		}
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// parseStamp accepts YYYYMMDD-HHMM or YYYYMMDD-HHMMSS with an optional -N counter.
func parseStamp(s string) (time.Time, int, bool) {
	seq := 0
	parts := strings.Split(s, "-")
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n <= 0 {
			return time.Time{}, 0, false
		}
		s, seq = parts[0]+"-"+parts[1], n
	}
	for _, layout := range []string{"20060102-1504", "20060102-150405"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, seq, true
		}
	}
	return time.Time{}, 0, false
}

func (m *Manager) rotateBackups() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}
	for i := MaxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// RestoreBackup replaces the goal keys with those in the backup at path.
// The current goal is backed up first. Keys the goal does not own are left
// untouched.
func (m *Manager) RestoreBackup(ctx context.Context, path string) error {
	snap, err := ReadSnapshot(path)
	if err != nil {
		return err
	}

	current, err := m.createBackup(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to backup current goal before restore: %w", err)
	}
	logger.Info("backed up current goal before restore", "path", current)

	err = m.provider.Update(ctx, func(prefs map[string]string) (map[string]string, error) {
		for _, k := range constants.AllGoalKeys {
			if v, ok := snap.Goal[k]; ok {
				prefs[k] = v
			} else {
				delete(prefs, k)
			}
		}
		return prefs, nil
	})
	if err != nil {
		return fmt.Errorf("failed to restore goal: %w", err)
	}
	return nil
}

// ReadSnapshot loads and checks a backup file. An empty goal is a valid
// snapshot of "no goal"; a partial one that does not decode is not.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if len(snap.Goal) > 0 && goalstore.Decode(snap.Goal, "1970-01-01") == nil {
		return nil, fmt.Errorf("%w: goal keys do not decode", ErrInvalidBackup)
	}
	return &snap, nil
}

func goalKeys(prefs map[string]string) map[string]string {
	out := map[string]string{}
	for _, k := range constants.AllGoalKeys {
		if v, ok := prefs[k]; ok {
			out[k] = v
		}
	}
	return out
}

// writeSnapshot writes through a temporary file and renames it into place.
func writeSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			logger.Warn("failed to remove temporary file", "path", tmp, "error", removeErr)
		}
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
