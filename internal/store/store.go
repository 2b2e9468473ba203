// Package store performs every file operation against the storage
// root: upload with collision-avoiding renaming, delete, rename, info,
// open, and listing. Each entry point sanitizes its name and
// re-validates containment before touching the filesystem.
//
// Existence checks here are check-then-act against the filesystem and
// are racy under concurrent requests targeting the same name. That is
// an accepted property of the design; there is no per-root lock.
package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/miikkis-gh/glassfile/internal/fsutil"
	"github.com/spf13/afero"
)

// Store owns one storage root. Configuration is immutable after New.
type Store struct {
	root    string
	fs      afero.Fs
	maxSize int64
	allowed map[string]struct{}
	logger  *slog.Logger
}

// Options configure a Store.
type Options struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// MaxSize caps upload content in bytes; zero means unlimited.
	MaxSize int64
	// AllowedExtensions restricts uploads/renames to the listed
	// lowercase extensions (with leading dot). Nil means unrestricted.
	AllowedExtensions []string
	Logger            *slog.Logger
}

// New builds a Store over an absolute root directory.
func New(root string, opt Options) (*Store, error) {
	if !filepath.IsAbs(root) {
		return nil, errors.New("storage root must be an absolute path")
	}
	s := &Store{
		root:    filepath.Clean(root),
		fs:      opt.Fs,
		maxSize: opt.MaxSize,
		logger:  opt.Logger,
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if opt.AllowedExtensions != nil {
		s.allowed = make(map[string]struct{}, len(opt.AllowedExtensions))
		for _, ext := range opt.AllowedExtensions {
			s.allowed[strings.ToLower(ext)] = struct{}{}
		}
	}
	if err := s.fs.MkdirAll(s.root, 0o700); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the absolute storage root path.
func (s *Store) Root() string {
	return s.root
}

// resolve sanitizes a raw name and re-validates containment. The
// containment check is deliberately independent of sanitization.
func (s *Store) resolve(raw string) (string, string, error) {
	name, err := fsutil.SanitizeName(raw)
	if err != nil {
		return "", "", err
	}
	path, err := fsutil.ResolveWithinRoot(s.root, name)
	if err != nil {
		return "", "", err
	}
	if err := s.rejectSymlink(path); err != nil {
		return "", "", err
	}
	return name, path, nil
}

// rejectSymlink refuses to operate through a symlink inside the root.
func (s *Store) rejectSymlink(path string) error {
	lst, ok := s.fs.(afero.Lstater)
	if !ok {
		return nil
	}
	fi, lstatted, err := lst.LstatIfPossible(path)
	if err != nil || !lstatted {
		return nil
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return ErrPathTraversal
	}
	return nil
}

// checkExtension enforces the allowed-extension policy.
func (s *Store) checkExtension(name string) error {
	if s.allowed == nil {
		return nil
	}
	if _, ok := s.allowed[fsutil.Ext(name)]; !ok {
		return ErrExtension
	}
	return nil
}

// Save writes uploaded content under a sanitized name. When the name is
// taken, a numeric suffix is inserted before the extension (base_1.ext,
// base_2.ext, ...) until a free name is found; collisions are never an
// error, only a different final name. Content beyond MaxSize fails with
// ErrTooLarge and leaves nothing behind.
func (s *Store) Save(rawName string, content io.Reader) (Record, error) {
	name, path, err := s.resolve(rawName)
	if err != nil {
		return Record{}, err
	}
	if err := s.checkExtension(name); err != nil {
		return Record{}, err
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		exists, err := afero.Exists(s.fs, path)
		if err != nil {
			return Record{}, err
		}
		if !exists {
			break
		}
		name = fmt.Sprintf("%s_%d%s", base, n, ext)
		path, err = fsutil.ResolveWithinRoot(s.root, name)
		if err != nil {
			return Record{}, err
		}
	}

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return Record{}, err
	}

	var written int64
	if s.maxSize > 0 {
		written, err = io.Copy(f, io.LimitReader(content, s.maxSize+1))
	} else {
		written, err = io.Copy(f, content)
	}
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && written > s.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = s.fs.Remove(path)
		return Record{}, err
	}

	fi, err := s.fs.Stat(path)
	if err != nil {
		return Record{}, err
	}
	return newRecord(name, fi, time.Now()), nil
}

// Delete unlinks a file. Directories and missing names are ErrNotFound.
func (s *Store) Delete(rawName string) error {
	_, path, err := s.resolve(rawName)
	if err != nil {
		return err
	}
	fi, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if fi.IsDir() {
		return ErrNotFound
	}
	return s.fs.Remove(path)
}

// Rename moves a file to a new name in a single rename call. It never
// overwrites: an existing destination is ErrConflict.
func (s *Store) Rename(oldRaw, newRaw string) (Record, error) {
	_, oldPath, err := s.resolve(oldRaw)
	if err != nil {
		return Record{}, err
	}
	newName, newPath, err := s.resolve(newRaw)
	if err != nil {
		return Record{}, err
	}
	if err := s.checkExtension(newName); err != nil {
		return Record{}, err
	}

	fi, err := s.fs.Stat(oldPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if fi.IsDir() {
		return Record{}, ErrNotFound
	}
	exists, err := afero.Exists(s.fs, newPath)
	if err != nil {
		return Record{}, err
	}
	if exists {
		return Record{}, ErrConflict
	}
	if err := s.fs.Rename(oldPath, newPath); err != nil {
		return Record{}, err
	}

	fi, err = s.fs.Stat(newPath)
	if err != nil {
		return Record{}, err
	}
	return newRecord(newName, fi, time.Now()), nil
}

// Info returns metadata for one file, including the created-relative
// time that the list view omits.
func (s *Store) Info(rawName string) (Record, error) {
	name, path, err := s.resolve(rawName)
	if err != nil {
		return Record{}, err
	}
	fi, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if fi.IsDir() {
		return Record{}, ErrNotFound
	}
	now := time.Now()
	rec := newRecord(name, fi, now)
	rec.CreatedRelative = RelativeTime(rec.Created, now)
	return rec, nil
}

// Open returns a reader for download. The caller closes the file.
func (s *Store) Open(rawName string) (afero.File, Record, error) {
	name, path, err := s.resolve(rawName)
	if err != nil {
		return nil, Record{}, err
	}
	fi, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Record{}, ErrNotFound
		}
		return nil, Record{}, err
	}
	if fi.IsDir() {
		return nil, Record{}, ErrNotFound
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, Record{}, err
	}
	return f, newRecord(name, fi, time.Now()), nil
}

// List enumerates regular files directly inside the root, newest
// modification first. Directories and symlinks are not surfaced.
func (s *Store) List() ([]Record, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	records := make([]Record, 0, len(entries))
	for _, fi := range entries {
		if !fi.Mode().IsRegular() {
			continue
		}
		records = append(records, newRecord(fi.Name(), fi, now))
	}
	// Stable keeps enumeration order deterministic for equal mtimes.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Modified.After(records[j].Modified)
	})
	return records, nil
}

// Writable probes whether the root accepts writes, for health checks.
func (s *Store) Writable() bool {
	f, err := afero.TempFile(s.fs, s.root, ".healthcheck-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = s.fs.Remove(name)
	return true
}
