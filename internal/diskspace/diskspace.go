// Package diskspace checks free space on the recording directory's
// filesystem before a recording starts, following the lineage's
// StorageMonitor: a Statfs call against the recordings path, converted
// to a low-space warning rather than a hard failure.
package diskspace

import (
	"golang.org/x/sys/unix"
)

// Info is a snapshot of the recording directory's filesystem usage.
type Info struct {
	TotalBytes     uint64
	AvailableBytes uint64
}

// Check statfs(2)'s path and reports its free space.
func Check(path string) (Info, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Info{}, err
	}
	blockSize := uint64(stat.Bsize)
	return Info{
		TotalBytes:     stat.Blocks * blockSize,
		AvailableBytes: stat.Bavail * blockSize,
	}, nil
}

// LowSpace reports whether available space has dropped at or below
// warnBytes — a logged warning, never a reason to refuse the attach.
func LowSpace(path string, warnBytes uint64) (bool, Info, error) {
	info, err := Check(path)
	if err != nil {
		return false, Info{}, err
	}
	return info.AvailableBytes <= warnBytes, info, nil
}
