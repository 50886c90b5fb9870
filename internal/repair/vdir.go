package repair

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"github.com/conductor-run/orchestrator/internal/models"
)

// ValidationDir materializes a session's generated files onto disk so the
// Phase 1/Phase 2 checkers (which shell out to real toolchains) have
// something to point at, guarded by a flock so two repair attempts for the
// same session never validate a half-written tree.
type ValidationDir struct {
	root string
	lock *flock.Flock
}

// NewValidationDir returns a ValidationDir rooted at root. root is created
// lazily by Materialize.
func NewValidationDir(root string) *ValidationDir {
	return &ValidationDir{root: root, lock: flock.New(root + ".lock")}
}

// Path returns the on-disk path for a session-relative file path.
func (v *ValidationDir) Path(relative string) string {
	return filepath.Join(v.root, filepath.FromSlash(relative))
}

// Root returns the materialized tree's root directory, for callers (such as
// a procrunner.Runner) that need to execute commands against the whole tree
// rather than one file within it.
func (v *ValidationDir) Root() string {
	return v.root
}

// Materialize writes every file to disk under an exclusive lock, replacing
// whatever was there before. Writes are atomic per file (temp file + rename)
// so a reader racing a repair iteration never observes a half-written file.
func (v *ValidationDir) Materialize(files map[string]models.StoredFile) error {
	if err := v.lock.Lock(); err != nil {
		return fmt.Errorf("validationdir: acquire lock: %w", err)
	}
	defer v.lock.Unlock()

	if err := os.MkdirAll(v.root, 0o755); err != nil {
		return fmt.Errorf("validationdir: mkdir %s: %w", v.root, err)
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := atomicWrite(v.Path(p), []byte(files[p].Content)); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup removes the materialized tree and its lock file.
func (v *ValidationDir) Cleanup() error {
	if err := os.RemoveAll(v.root); err != nil {
		return err
	}
	return os.Remove(v.root + ".lock")
}

// atomicWrite mirrors the teacher's lock-then-rename write pattern: write to
// a temp file in the same directory, then rename over the target so readers
// never see a partial write.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomicWrite: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("atomicWrite: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("atomicWrite: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("atomicWrite: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomicWrite: close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("atomicWrite: chmod: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomicWrite: rename %s: %w", tmpPath, err)
	}
	tmp = nil
	return nil
}
