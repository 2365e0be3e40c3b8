package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gritvcs/grit/pkg/object"
)

// CheckoutCommit materializes the given commit's tree into the working
// directory and resets the staging area to match it. Parent directories are
// created as needed. A write failure aborts mid-way without rolling back
// files already written; objects in the store are unaffected.
func (r *Repo) CheckoutCommit(commitHash object.Hash) error {
	commit, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return fmt.Errorf("checkout: read commit %s: %w", commitHash, err)
	}

	files, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("checkout: flatten tree: %w", err)
	}

	stg := &Staging{Entries: make(map[string]*StagingEntry, len(files))}
	for _, f := range files {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))

		dir := filepath.Dir(absPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("checkout: mkdir %q: %w", dir, err)
		}

		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return fmt.Errorf("checkout: read blob for %q: %w", f.Path, err)
		}

		if normalizeFileMode(f.Mode) == object.TreeModeSymlink {
			// Replace any stale link before recreating it.
			if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("checkout: remove %q: %w", f.Path, err)
			}
			if err := os.Symlink(string(blob.Data), absPath); err != nil {
				return fmt.Errorf("checkout: symlink %q: %w", f.Path, err)
			}
		} else {
			if err := os.WriteFile(absPath, blob.Data, filePermFromMode(f.Mode)); err != nil {
				return fmt.Errorf("checkout: write %q: %w", f.Path, err)
			}
		}

		info, err := os.Lstat(absPath)
		if err != nil {
			return fmt.Errorf("checkout: stat %q: %w", f.Path, err)
		}
		stg.Entries[f.Path] = &StagingEntry{
			Path:     f.Path,
			BlobHash: f.BlobHash,
			Mode:     normalizeFileMode(f.Mode),
			ModTime:  info.ModTime().UnixNano(),
			Size:     info.Size(),
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	return nil
}
