//go:build linux

package store

import (
	"io/fs"
	"syscall"
	"time"
)

// createdTime reads the inode change time where the platform exposes
// one; stat carries no true creation time on Linux.
func createdTime(fi fs.FileInfo) time.Time {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return fi.ModTime()
}
