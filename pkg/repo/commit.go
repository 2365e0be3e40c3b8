package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gritvcs/grit/pkg/object"
)

// Commit creates a new commit from the current staging area.
//
// Validation happens before anything is persisted: an empty message fails
// with ErrEmptyMessage, and a staged tree identical to HEAD's tree fails with
// ErrNothingToCommit — in both cases the branch ref and the object store are
// left untouched. The tree hash used for validation comes from a dry run
// (TreeHash); trees are only written once the commit is going ahead.
func (r *Repo) Commit(message string, author object.Signature) (object.Hash, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("commit: %w", ErrEmptyMessage)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if len(stg.Entries) == 0 {
		return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
	}

	treeHash, err := r.TreeHash(stg)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	// Resolve HEAD to get the parent (absent for the first commit).
	var parent object.Hash
	if h, err := r.ResolveRef("HEAD"); err == nil && h != "" {
		parent = h
	}

	if parent != "" {
		parentCommit, err := r.Store.ReadCommit(parent)
		if err != nil {
			return "", fmt.Errorf("commit: read parent %s: %w", parent, err)
		}
		if parentCommit.TreeHash == treeHash {
			return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
		}
	}

	// Validation passed: persist the trees for real.
	writtenTree, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if writtenTree != treeHash {
		return "", fmt.Errorf("commit: tree hash changed between validation and write (%s vs %s)", treeHash, writtenTree)
	}

	commitHash, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  treeHash,
		Parent:    parent,
		Author:    author,
		Committer: author,
		Message:   message,
	})
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("commit: read HEAD: %w", err)
	}
	if strings.HasPrefix(head, "refs/") {
		if err := r.UpdateRef(head, commitHash); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	} else {
		// Detached HEAD: point HEAD directly at the new commit.
		if err := r.SetHead("", commitHash); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	}

	return commitHash, nil
}

// LogEntry pairs a commit with its hash for history listings.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log walks the commit history starting from the given hash, following
// parent links, returning up to limit commits newest first. A limit of zero
// or less means unlimited.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start

	for current != "" {
		if limit > 0 && len(entries) >= limit {
			break
		}
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})
		current = c.Parent
	}

	return entries, nil
}
