package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gritvcs/grit/pkg/object"
)

// FileStatus represents the state of a file in one comparison axis.
type FileStatus int

const (
	StatusClean     FileStatus = iota // file matches between compared areas
	StatusAdded                       // in staging, not in HEAD tree
	StatusModified                    // content differs between compared areas
	StatusDeleted                     // present on one side, absent on the other
	StatusUntracked                   // in working dir but not in staging
)

func (s FileStatus) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusAdded:
		return "added"
	case StatusModified:
		return "modified"
	case StatusDeleted:
		return "deleted"
	case StatusUntracked:
		return "untracked"
	}
	return fmt.Sprintf("FileStatus(%d)", int(s))
}

// StatusEntry records the status of a single file. IndexStatus compares the
// staging area against HEAD's tree; WorkStatus compares the working tree
// against the staging area.
type StatusEntry struct {
	Path        string
	IndexStatus FileStatus
	WorkStatus  FileStatus
}

type headTreeState struct {
	BlobHash object.Hash
	Mode     string
}

// Status computes the working tree status for the repository.
//
// Three hash views are computed per path: working tree (content hash, with a
// size+mtime stat cache to skip rehashing unchanged files), staged (from the
// index), and committed (flattened HEAD tree). Each path is classified by
// comparing the views.
func (r *Repo) Status() ([]StatusEntry, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	workFiles, err := r.workingFiles()
	if err != nil {
		return nil, fmt.Errorf("status: walk: %w", err)
	}

	result := make(map[string]*StatusEntry)
	refreshStaging := false

	// --- Working tree vs staging ---

	for path := range workFiles {
		se, inStaging := stg.Entries[path]
		if !inStaging {
			result[path] = &StatusEntry{
				Path:        path,
				IndexStatus: StatusUntracked,
				WorkStatus:  StatusUntracked,
			}
			continue
		}

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		info, err := os.Lstat(absPath)
		if err != nil {
			return nil, fmt.Errorf("status: stat %q: %w", path, err)
		}

		workStatus := StatusClean
		workMode := modeFromFileInfo(info)
		if !statMatches(se, info, workMode) {
			// Metadata differs: re-validate by content hash.
			workHash, err := r.worktreeBlobHash(absPath, workMode)
			if err != nil {
				return nil, fmt.Errorf("status: read %q: %w", path, err)
			}
			if workHash != se.BlobHash || workMode != normalizeFileMode(se.Mode) {
				workStatus = StatusModified
			} else if refreshStatCache(se, info, workMode) {
				refreshStaging = true
			}
		}

		result[path] = &StatusEntry{Path: path, WorkStatus: workStatus}
	}

	// Staged entries missing from disk are deleted in the working tree.
	for path := range stg.Entries {
		if _, onDisk := workFiles[path]; !onDisk {
			result[path] = &StatusEntry{Path: path, WorkStatus: StatusDeleted}
		}
	}

	// --- Staging vs HEAD ---

	headEntries := r.headTreeEntries()

	for path, se := range stg.Entries {
		entry := result[path]
		headState, inHead := headEntries[path]
		switch {
		case !inHead:
			entry.IndexStatus = StatusAdded
		case se.BlobHash != headState.BlobHash || normalizeFileMode(se.Mode) != normalizeFileMode(headState.Mode):
			entry.IndexStatus = StatusModified
		default:
			entry.IndexStatus = StatusClean
		}
	}

	// HEAD entries missing from staging are deleted in the index.
	for path := range headEntries {
		if _, inStaging := stg.Entries[path]; !inStaging {
			entry, exists := result[path]
			if !exists {
				entry = &StatusEntry{Path: path}
				result[path] = entry
			}
			entry.IndexStatus = StatusDeleted
		}
	}

	entries := make([]StatusEntry, 0, len(result))
	for _, e := range result {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	if refreshStaging {
		if err := r.WriteStaging(stg); err != nil {
			return nil, fmt.Errorf("status: refresh staging: %w", err)
		}
	}

	return entries, nil
}

// workingFiles walks the working directory and returns the set of
// repo-relative file paths, skipping .grit/ and ignored paths.
func (r *Repo) workingFiles() (map[string]bool, error) {
	ic := NewIgnoreChecker(r.RootDir)

	files := make(map[string]bool)
	err := filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			files[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// worktreeBlobHash hashes a working-tree file the way stageFile would store
// it: symlinks hash their target, regular files their content.
func (r *Repo) worktreeBlobHash(absPath, mode string) (object.Hash, error) {
	var content []byte
	var err error
	if mode == object.TreeModeSymlink {
		var target string
		target, err = os.Readlink(absPath)
		content = []byte(target)
	} else {
		content, err = os.ReadFile(absPath)
	}
	if err != nil {
		return "", err
	}
	return object.HashObject(object.TypeBlob, content), nil
}

// headTreeEntries reads the HEAD commit's tree and flattens it into a map of
// path to blob state. A fresh repository with no commits yields an empty map.
func (r *Repo) headTreeEntries() map[string]headTreeState {
	result := make(map[string]headTreeState)

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return result
	}
	commit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return result
	}

	files, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return result
	}
	for _, f := range files {
		result[f.Path] = headTreeState{
			BlobHash: f.BlobHash,
			Mode:     normalizeFileMode(f.Mode),
		}
	}
	return result
}

// statMatches reports whether the cached size and mtime in the staging entry
// still describe the file on disk, allowing Status to skip rehashing.
func statMatches(se *StagingEntry, info os.FileInfo, workMode string) bool {
	if se == nil {
		return false
	}
	if normalizeFileMode(se.Mode) != normalizeFileMode(workMode) {
		return false
	}
	return se.Size == info.Size() && se.ModTime == info.ModTime().UnixNano()
}

// refreshStatCache updates the staging entry's cached metadata after a
// content hash confirmed the file unchanged. Returns true when the entry
// changed and the index needs rewriting.
func refreshStatCache(se *StagingEntry, info os.FileInfo, workMode string) bool {
	nextMode := normalizeFileMode(workMode)
	nextModTime := info.ModTime().UnixNano()
	nextSize := info.Size()
	if se.ModTime == nextModTime && se.Size == nextSize && normalizeFileMode(se.Mode) == nextMode {
		return false
	}
	se.Mode = nextMode
	se.ModTime = nextModTime
	se.Size = nextSize
	return true
}
