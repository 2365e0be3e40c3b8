package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gritvcs/grit/pkg/object"
)

// StagingEntry records the staged state of a single file.
type StagingEntry struct {
	Path     string      `json:"path"`
	BlobHash object.Hash `json:"blob_hash"`
	Mode     string      `json:"mode"`
	ModTime  int64       `json:"mod_time"` // unix nanoseconds
	Size     int64       `json:"size"`
}

// Staging holds the full staging area (index) for a grit repository.
type Staging struct {
	Entries map[string]*StagingEntry `json:"entries"`
}

// indexPath returns the filesystem path to the staging index file.
func (r *Repo) indexPath() string {
	return filepath.Join(r.GritDir, "index")
}

// ReadStaging loads the staging area from .grit/index. If the file does not
// exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Staging{Entries: make(map[string]*StagingEntry)}, nil
		}
		return nil, fmt.Errorf("read staging: %w", err)
	}

	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	if stg.Entries == nil {
		stg.Entries = make(map[string]*StagingEntry)
	}
	return &stg, nil
}

// WriteStaging atomically writes the staging area to .grit/index.
func (r *Repo) WriteStaging(s *Staging) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(r.GritDir, ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write staging: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write staging: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: close: %w", err)
	}

	if err := os.Rename(tmpName, r.indexPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: rename: %w", err)
	}
	return nil
}

// Add stages the given file paths. Each path is resolved relative to the
// repo root. For each file the content is stored as a blob and the staging
// entry is updated with the blob hash and file metadata. Paths excluded by
// .gritignore are not staged. Per-path failures do not abort the batch: the
// remaining paths are still staged and the accumulated errors are returned
// joined.
func (r *Repo) Add(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	ic := NewIgnoreChecker(r.RootDir)

	var failures []error
	staged := 0
	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			failures = append(failures, fmt.Errorf("add %q: %w", p, err))
			continue
		}
		if ic.IsIgnored(relPath) {
			failures = append(failures, fmt.Errorf("add %q: path is ignored", relPath))
			continue
		}
		entry, err := r.stageFile(relPath)
		if err != nil {
			failures = append(failures, fmt.Errorf("add %q: %w", relPath, err))
			continue
		}
		stg.Entries[relPath] = entry
		staged++
	}

	if staged > 0 {
		if err := r.WriteStaging(stg); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

// stageFile hashes one working-tree file into the store and returns its
// staging entry. Symlinks are staged as blobs holding the link target.
func (r *Repo) stageFile(relPath string) (*StagingEntry, error) {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("is a directory")
	}

	mode := modeFromFileInfo(info)
	var content []byte
	if mode == object.TreeModeSymlink {
		target, err := os.Readlink(absPath)
		if err != nil {
			return nil, err
		}
		content = []byte(target)
	} else {
		content, err = os.ReadFile(absPath)
		if err != nil {
			return nil, err
		}
	}

	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}

	return &StagingEntry{
		Path:     relPath,
		BlobHash: blobHash,
		Mode:     mode,
		ModTime:  info.ModTime().UnixNano(),
		Size:     info.Size(),
	}, nil
}

// repoRelPath converts a path (absolute, or relative to CWD) into a path
// relative to the repository root. If the path cannot be resolved against
// the root, it is assumed to already be repo-relative.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		return filepath.ToSlash(rel), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	abs := filepath.Join(cwd, p)
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	// A path outside the repo is treated as already repo-relative.
	if len(rel) >= 2 && rel[:2] == ".." {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	return filepath.ToSlash(rel), nil
}
