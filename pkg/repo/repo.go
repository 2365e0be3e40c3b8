package repo

import (
	"errors"

	"github.com/gritvcs/grit/pkg/object"
)

var (
	// ErrNotRepository is returned when no .grit/ directory is found.
	ErrNotRepository = errors.New("not a grit repository")

	// ErrUnknownRef is returned when a ref name does not resolve to a hash.
	ErrUnknownRef = errors.New("unknown ref")

	// ErrEmptyMessage is returned by Commit when the message is blank.
	ErrEmptyMessage = errors.New("empty commit message")

	// ErrNothingToCommit is returned by Commit when the staged tree is
	// identical to HEAD's tree (or the staging area is empty).
	ErrNothingToCommit = errors.New("nothing to commit")
)

// Repo represents an opened grit repository.
type Repo struct {
	RootDir string        // working directory root
	GritDir string        // .grit/ directory
	Store   *object.Store // content-addressed object store
}
