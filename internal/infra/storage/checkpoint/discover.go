package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const timestampLayout = "20060102_150405"

// NewPath returns <dir>/<prefix>_checkpoint_<YYYYMMDD_HHMMSS>.csv.
func NewPath(dir, prefix string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_checkpoint_%s.csv", prefix, now.Format(timestampLayout)))
}

// PositivePath returns <dir>/<prefix>_positive_only_<YYYYMMDD_HHMMSS>.csv.
func PositivePath(dir, prefix string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_positive_only_%s.csv", prefix, now.Format(timestampLayout)))
}

// FindLatest returns the most recently modified checkpoint for prefix in dir,
// or "" when there is none.
func FindLatest(dir, prefix string) (string, error) {
	return latestMatch(filepath.Join(dir, prefix+"_checkpoint_*.csv"))
}

func latestMatch(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", pattern, err)
	}

	var (
		latest   string
		latestAt time.Time
	)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if latest == "" || info.ModTime().After(latestAt) {
			latest, latestAt = m, info.ModTime()
		}
	}
	return latest, nil
}
