// Package archive builds Walk abstraction on top of "archive/zip".
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/maruel/natural"
)

// WalkFunc is called for each file in archive visited by Walk. The archive
// argument is the path passed to Walk. If an error is returned, processing
// stops.
type WalkFunc func(archive string, file *zip.File) error

// MatchFunc selects entries to visit by their slash separated name.
type MatchFunc func(name string) bool

// Walk visits files of the archive accepted by match in natural order of
// their names, so "part2.css" comes before "part10.css". Archives with
// absolute entry names or names containing ".." are rejected.
func Walk(archive string, match MatchFunc, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	files := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		if !isSafePath(f.Name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", f.Name)
		}
		if f.FileInfo().IsDir() || (match != nil && !match(f.Name)) {
			continue
		}
		files = append(files, f)
	}
	slices.SortStableFunc(files, func(a, b *zip.File) int {
		switch {
		case natural.Less(a.Name, b.Name):
			return -1
		case natural.Less(b.Name, a.Name):
			return 1
		}
		return 0
	})

	for _, f := range files {
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

// ReadFile reads content of the archive entry refusing entries larger than
// limit bytes (uncompressed), limit <= 0 means no limit.
func ReadFile(f *zip.File, limit int64) ([]byte, error) {
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("zip entry %q is too large (%d bytes)", f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open zip entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		// size in header may lie
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read zip entry %q: %w", f.Name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("zip entry %q is too large", f.Name)
	}
	return data, nil
}

// Ext returns MatchFunc accepting names with one of the extensions (with
// leading dot), case insensitive.
func Ext(exts ...string) MatchFunc {
	return func(name string) bool {
		ext := strings.ToLower(path.Ext(name))
		return slices.ContainsFunc(exts, func(e string) bool { return strings.EqualFold(e, ext) })
	}
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	return !slices.Contains(strings.Split(name, "/"), "..")
}
