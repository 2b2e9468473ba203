// Package fsutil guards every filesystem path the gateway touches.
//
// SanitizeName reduces an untrusted name to a bare filename, and
// ResolveWithinRoot verifies the joined path stays inside the storage
// root. Callers use both: sanitization is never trusted as the only
// barrier before a filesystem call.
package fsutil

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidName   = errors.New("invalid filename")
	ErrPathTraversal = errors.New("path escapes storage root")
)

// reservedChars are stripped from names after directory components are
// dropped. They are path or shell significant on common platforms.
const reservedChars = `:"<>|?*`

// SanitizeName converts an untrusted filename into a safe, root-relative
// name with no directory component. Path separators and "."/".."
// segments are dropped, remaining segments are joined with underscores,
// reserved characters are removed, and leading/trailing dots and
// whitespace are trimmed. An empty result is an error.
func SanitizeName(raw string) (string, error) {
	s := strings.ReplaceAll(raw, "\\", "/")

	var segs []string
	for _, seg := range strings.Split(s, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segs = append(segs, seg)
	}
	name := strings.Join(segs, "_")

	// Collapse interior whitespace the same way.
	name = strings.Join(strings.Fields(name), "_")

	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(reservedChars, r) {
			return -1
		}
		return r
	}, name)

	name = strings.Trim(name, ". ")
	if name == "" {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	return name, nil
}

// ResolveWithinRoot joins a sanitized name onto root and verifies the
// cleaned result is still a direct child of root. root must be absolute.
func ResolveWithinRoot(root, name string) (string, error) {
	if root == "" || !filepath.IsAbs(root) {
		return "", errors.New("root must be an absolute path")
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", ErrPathTraversal
	}
	rootAbs := filepath.Clean(root)
	joined := filepath.Clean(filepath.Join(rootAbs, name))
	if filepath.Dir(joined) != rootAbs || joined == rootAbs {
		return "", ErrPathTraversal
	}
	return joined, nil
}

// Ext returns the lowercased extension of name including the leading
// dot, or "" when the name has none.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
