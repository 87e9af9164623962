package storage

import (
	"fmt"
	"syscall"

	"github.com/convsearch/convdex/internal/errors"
)

// MinFreeBytes is the minimum free disk space required to start a build
// (500MB). Index builds write a full staged copy before publishing, so
// running out mid-build wastes the whole attempt.
const MinFreeBytes = 500 * 1024 * 1024

// CheckDiskSpace verifies there is enough free space at path to stage a
// build. Returns a disk-full error when below MinFreeBytes.
func CheckDiskSpace(path string) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return errors.MissingPath(path, err)
	}

	available := stat.Bavail * uint64(stat.Bsize)
	if available < MinFreeBytes {
		return errors.New(errors.ErrCodeDiskFull,
			fmt.Sprintf("%s free, need at least %s", formatBytes(available), formatBytes(MinFreeBytes)), nil)
	}
	return nil
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/gb)
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/mb)
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/kb)
	default:
		return fmt.Sprintf("%d B", b)
	}
}
