// Package dirindex decides whether a served directory has a natural index
// page and renders a listing page of every file under it when it does not.
package dirindex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var ErrNotDir = errors.New("not a directory")

// IndexName is the file that, when present at the root, is served for "/".
const IndexName = "index.html"

// HasIndex reports whether root directly contains an entry named exactly
// index.html. Subdirectories are not looked at.
func HasIndex(root string) (bool, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false, fmt.Errorf("read dir: %w", err)
	}
	for _, entry := range entries {
		if entry.Name() == IndexName {
			return true, nil
		}
	}
	return false, nil
}

// Walk returns the slash separated path, relative to root, of every regular
// file under root in walk order. Symbolic links are neither followed nor
// listed, except for root itself which is resolved first. Entries that
// cannot be read or are not valid fs.FS names are skipped, only a failure
// to read root is returned.
func Walk(root string) ([]string, error) {
	root, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case path == root && err != nil:
			return err
		case path == root && !d.IsDir():
			return fmt.Errorf("%s: %w", root, ErrNotDir)
		case err != nil && d != nil && d.IsDir():
			return filepath.SkipDir
		case err != nil:
			return nil
		case !d.Type().IsRegular():
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		// names an fs.FS cannot open, like invalid utf-8, would never be served
		if name := filepath.ToSlash(rel); fs.ValidPath(name) {
			files = append(files, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk dir: %w", err)
	}
	return files, nil
}
