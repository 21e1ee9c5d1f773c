// Package lockfile implements mxkit.lock, a lock file that tracks MD5
// checksums of source segments per MXLIFF file. It lets the CLI tell which
// units are new or have a changed source since they were last translated,
// so only those are handed to a translator.
//
// The lock file is stored alongside .mxkit.yaml as mxkit.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	"github.com/libmemsource/mxkit/mxliff"
)

// LockFileName is the default lock file name.
const LockFileName = "mxkit.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the mxkit.lock file structure.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"` // target -> unit key -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if lf.Version > Version {
		return nil, fmt.Errorf("%s: unsupported lock file version %d", path, lf.Version)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}

	return lf, nil
}

// Save writes the lock file to disk, replacing it atomically.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := renameio.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// TargetKey builds the target key for an MXLIFF file, relative to the
// project root when possible, e.g. "jobs/manual_ja.mxliff".
func TargetKey(root, filePath string) string {
	if rel, err := filepath.Rel(root, filePath); err == nil && !strings.HasPrefix(rel, "..") {
		filePath = rel
	}
	return filepath.ToSlash(filePath)
}

// UnitKey builds a lock file key for a trans-unit: "original|id".
func UnitKey(original, id string) string {
	return original + "|" + id
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// IsChanged checks if a source segment has changed since last translation.
// Returns true if the unit is new or its source has changed.
func (lf *LockFile) IsChanged(target, key, source string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys, ok := lf.Checksums[target]
	if !ok {
		return true
	}
	oldHash, ok := keys[key]
	if !ok {
		return true
	}
	return oldHash != Hash(source)
}

// Update records the checksum of a source segment after translation.
func (lf *LockFile) Update(target, key, source string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[target] == nil {
		lf.Checksums[target] = make(map[string]string)
	}
	lf.Checksums[target][key] = Hash(source)
}

// UpdateBatch records checksums for multiple keys at once.
func (lf *LockFile) UpdateBatch(target string, entries map[string]string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[target] == nil {
		lf.Checksums[target] = make(map[string]string)
	}
	for key, source := range entries {
		lf.Checksums[target][key] = Hash(source)
	}
}

// Clean removes entries that are no longer present in the current set of
// keys, so units deleted from a job do not accumulate.
func (lf *LockFile) Clean(target string, currentKeys []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[target]
	if existing == nil {
		return
	}

	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}

	for k := range existing {
		if !valid[k] {
			delete(existing, k)
		}
	}
}

// RemoveTarget removes all checksums for a target.
func (lf *LockFile) RemoveTarget(target string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Checksums, target)
}

// ---------------------------------------------------------------------------
// Document helpers
// ---------------------------------------------------------------------------

// DocumentEntries returns unit key -> source text for every unit of d.
func DocumentEntries(d *mxliff.Document) map[string]string {
	entries := make(map[string]string, d.TransUnitCount)
	for _, f := range d.Files {
		for _, u := range f.TransUnits {
			entries[UnitKey(f.Original, u.ID)] = u.Source.Text
		}
	}
	return entries
}

// ChangedUnits returns, in document order, the units of d whose source is
// new or changed for target.
func (lf *LockFile) ChangedUnits(target string, d *mxliff.Document) []*mxliff.TransUnit {
	var units []*mxliff.TransUnit
	for _, f := range d.Files {
		for _, u := range f.TransUnits {
			if lf.IsChanged(target, UnitKey(f.Original, u.ID), u.Source.Text) {
				units = append(units, u)
			}
		}
	}
	return units
}

// Record stores the checksums of all translated units of d and drops keys
// for units that no longer exist.
func (lf *LockFile) Record(target string, d *mxliff.Document) {
	entries := make(map[string]string)
	keys := make([]string, 0, d.TransUnitCount)
	for _, f := range d.Files {
		for _, u := range f.TransUnits {
			key := UnitKey(f.Original, u.ID)
			keys = append(keys, key)
			if u.IsTranslated() {
				entries[key] = u.Source.Text
			}
		}
	}
	lf.UpdateBatch(target, entries)
	lf.Clean(target, keys)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of targets and total keys in the lock file.
func (lf *LockFile) Stats() (targets, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets = len(lf.Checksums)
	for _, m := range lf.Checksums {
		keys += len(m)
	}
	return
}

// Targets returns sorted list of target keys.
func (lf *LockFile) Targets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets := make([]string, 0, len(lf.Checksums))
	for t := range lf.Checksums {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	targets, keys := lf.Stats()
	if targets == 0 {
		return "empty"
	}

	var parts []string
	for _, t := range lf.Targets() {
		lf.mu.Lock()
		n := len(lf.Checksums[t])
		lf.mu.Unlock()
		parts = append(parts, fmt.Sprintf("%s: %d units", t, n))
	}
	return fmt.Sprintf("%d files, %d units (%s)", targets, keys, strings.Join(parts, ", "))
}
