package store

import (
	"io/fs"
	"time"

	"github.com/miikkis-gh/glassfile/internal/fsutil"
)

// Record is derived file metadata. It is recomputed on every query;
// the filesystem is the only source of truth.
type Record struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Modified  time.Time `json:"modified"`
	Created   time.Time `json:"created"`
	Extension string    `json:"extension"`
	URL       string    `json:"url"`

	SizeFormatted    string `json:"size_formatted"`
	ModifiedRelative string `json:"modified_relative"`
	CreatedRelative  string `json:"created_relative,omitempty"`
}

func newRecord(name string, fi fs.FileInfo, now time.Time) Record {
	mod := fi.ModTime()
	return Record{
		Name:             name,
		Size:             fi.Size(),
		Modified:         mod,
		Created:          createdTime(fi),
		Extension:        fsutil.Ext(name),
		URL:              "/files/" + name,
		SizeFormatted:    FormatSize(fi.Size()),
		ModifiedRelative: RelativeTime(mod, now),
	}
}
