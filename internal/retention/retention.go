// Package retention prunes aged report and log artifacts from the output
// tree so repeated audit runs do not accumulate evidence forever.
package retention

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Sweeper deletes files matching a name pattern once they age past the
// retention window, then removes directories the deletions emptied.
type Sweeper struct {
	logger *zap.Logger

	// now is overridable in tests.
	now func() time.Time
}

// NewSweeper creates a Sweeper.
func NewSweeper(logger *zap.Logger) *Sweeper {
	return &Sweeper{logger: logger, now: time.Now}
}

// Purge walks rootDir and deletes every file whose base name matches
// pattern (filepath.Match syntax) and whose modification time is older than
// maxAge. Directories emptied by the sweep are removed, deepest first; the
// root itself is kept. Files that do not match the pattern are never
// touched, whatever their age. Running Purge twice back to back is a no-op
// the second time.
func (s *Sweeper) Purge(rootDir, pattern string, maxAge time.Duration) error {
	if _, err := filepath.Match(pattern, "probe"); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	cutoff := s.now().Add(-maxAge)
	var dirs []string
	removed := 0

	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A vanished entry is not a failure; the sweep is best effort
			// and rerunnable.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path != rootDir {
				dirs = append(dirs, path)
			}
			return nil
		}

		matched, _ := filepath.Match(pattern, d.Name())
		if !matched {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %q: %w", path, err)
		}
		removed++
		s.logger.Info("purged aged artifact",
			zap.String("path", path),
			zap.Time("modified", info.ModTime()))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("walk %q: %w", rootDir, err)
	}

	// Deepest directories first, so an emptied parent is seen after its
	// emptied children.
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(os.PathSeparator)) >
			strings.Count(dirs[j], string(os.PathSeparator))
	})
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read dir %q: %w", dir, err)
		}
		if len(entries) != 0 {
			continue
		}
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove empty dir %q: %w", dir, err)
		}
		s.logger.Info("removed empty directory", zap.String("path", dir))
	}

	if removed > 0 {
		s.logger.Info("retention sweep complete",
			zap.String("root", rootDir),
			zap.String("pattern", pattern),
			zap.Int("removed", removed))
	}
	return nil
}
