package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/gritvcs/grit/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	Mode     string
	BlobHash object.Hash
}

// BuildTree converts the flat staging entries into a hierarchical tree
// structure, writing TreeObj objects to the store and returning the root hash.
//
// Staging entries use forward-slash paths (e.g. "pkg/util/util.go").
// BuildTree groups them by directory, recursively creates subtrees bottom-up,
// and returns the root tree hash.
func (r *Repo) BuildTree(s *Staging) (object.Hash, error) {
	return buildTreeDir(s, "", r.Store.WriteTree)
}

// TreeHash computes the root tree hash the staging area would produce,
// without writing anything to the store. Commit uses it to validate before
// persisting.
func (r *Repo) TreeHash(s *Staging) (object.Hash, error) {
	return buildTreeDir(s, "", func(tr *object.TreeObj) (object.Hash, error) {
		data, err := object.MarshalTree(tr)
		if err != nil {
			return "", err
		}
		return object.HashObject(object.TypeTree, data), nil
	})
}

// buildTreeDir builds a TreeObj for the given directory prefix and passes it
// to sink (store write or hash-only). It returns the tree's hash.
func buildTreeDir(s *Staging, prefix string, sink func(*object.TreeObj) (object.Hash, error)) (object.Hash, error) {
	// Collect direct children: files and subdirectory names.
	files := make(map[string]*StagingEntry)
	subdirs := make(map[string]struct{})

	for p, entry := range s.Entries {
		var rel string
		if prefix == "" {
			rel = p
		} else {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}

		slash := strings.IndexByte(rel, '/')
		if slash < 0 {
			files[rel] = entry
		} else {
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	names := make([]string, 0, len(files)+len(subdirs))
	for name := range files {
		names = append(names, name)
	}
	for name := range subdirs {
		// A name cannot be both a file and a directory; a staging area that
		// claims otherwise is corrupt.
		if _, isFile := files[name]; isFile {
			conflict := name
			if prefix != "" {
				conflict = prefix + "/" + name
			}
			return "", fmt.Errorf("staging conflict: %q is both a file and a directory", conflict)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var entries []object.TreeEntry
	for _, name := range names {
		if entry, isFile := files[name]; isFile {
			entries = append(entries, object.TreeEntry{
				Mode: normalizeFileMode(entry.Mode),
				Name: name,
				Hash: entry.BlobHash,
			})
		} else {
			childPrefix := name
			if prefix != "" {
				childPrefix = prefix + "/" + name
			}
			subHash, err := buildTreeDir(s, childPrefix, sink)
			if err != nil {
				return "", fmt.Errorf("build tree %q: %w", childPrefix, err)
			}
			entries = append(entries, object.TreeEntry{
				Mode: object.TreeModeDir,
				Name: name,
				Hash: subHash,
			})
		}
	}

	h, err := sink(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full paths (using forward slashes).
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	return r.flattenTreeRec(h, "")
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = path.Join(prefix, entry.Name)
		}

		if entry.IsDir() {
			sub, err := r.flattenTreeRec(entry.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
		} else {
			result = append(result, TreeFileEntry{
				Path:     fullPath,
				Mode:     entry.Mode,
				BlobHash: entry.Hash,
			})
		}
	}
	return result, nil
}
