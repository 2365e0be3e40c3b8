package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gritvcs/grit/pkg/diff"
	"github.com/gritvcs/grit/pkg/object"
)

// Diff produces unified-diff text across all paths with changes. With cached
// false it compares the working tree against the staging area; with cached
// true it compares the staging area against HEAD's tree. Both reduce to
// resolving an old/new byte buffer per path (nil for an absent side) and
// handing them to the diff engine.
func (r *Repo) Diff(cached bool) (string, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("diff: %w", err)
	}

	var paths []string
	var resolve func(path string) (oldData, newData []byte, err error)

	if cached {
		headEntries := r.headTreeEntries()

		seen := make(map[string]bool)
		for p := range stg.Entries {
			seen[p] = true
			paths = append(paths, p)
		}
		for p := range headEntries {
			if !seen[p] {
				paths = append(paths, p)
			}
		}

		resolve = func(path string) ([]byte, []byte, error) {
			var oldData, newData []byte
			if hs, ok := headEntries[path]; ok {
				blob, err := r.Store.ReadBlob(hs.BlobHash)
				if err != nil {
					return nil, nil, fmt.Errorf("read HEAD blob for %q: %w", path, err)
				}
				oldData = blob.Data
			}
			if se, ok := stg.Entries[path]; ok {
				blob, err := r.Store.ReadBlob(se.BlobHash)
				if err != nil {
					return nil, nil, fmt.Errorf("read staged blob for %q: %w", path, err)
				}
				newData = blob.Data
			}
			return oldData, newData, nil
		}
	} else {
		// Working vs staging covers tracked paths only; untracked files have
		// no staged side to compare against.
		for p := range stg.Entries {
			paths = append(paths, p)
		}

		resolve = func(path string) ([]byte, []byte, error) {
			se := stg.Entries[path]
			blob, err := r.Store.ReadBlob(se.BlobHash)
			if err != nil {
				return nil, nil, fmt.Errorf("read staged blob for %q: %w", path, err)
			}
			oldData := blob.Data

			newData, err := r.worktreeBytes(path)
			if err != nil {
				return nil, nil, err
			}
			return oldData, newData, nil
		}
	}

	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		oldData, newData, err := resolve(p)
		if err != nil {
			return "", fmt.Errorf("diff: %w", err)
		}
		b.WriteString(diff.Unified(p, oldData, newData))
	}
	return b.String(), nil
}

// worktreeBytes reads a working-tree file's logical content, or nil when the
// file is absent.
func (r *Repo) worktreeBytes(relPath string) ([]byte, error) {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))

	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %q: %w", relPath, err)
	}

	if modeFromFileInfo(info) == object.TreeModeSymlink {
		target, err := os.Readlink(absPath)
		if err != nil {
			return nil, fmt.Errorf("readlink %q: %w", relPath, err)
		}
		return []byte(target), nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", relPath, err)
	}
	return data, nil
}
