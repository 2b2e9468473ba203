//go:build !linux

package store

import (
	"io/fs"
	"time"
)

func createdTime(fi fs.FileInfo) time.Time {
	return fi.ModTime()
}
