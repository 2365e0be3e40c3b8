package object

// Hash is a 40-character hex-encoded SHA-1 digest.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

const (
	// Tree mode constants using Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. Entries are unique by Name within
// a tree and sorted lexicographically before encoding, so a tree's hash does
// not depend on insertion order.
type TreeEntry struct {
	Mode string
	Name string
	Hash Hash
}

// IsDir reports whether the entry references a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Mode == TreeModeDir
}

// TreeObj holds a list of tree entries.
type TreeObj struct {
	Entries []TreeEntry
}

// Find returns the entry with the given name, or nil.
func (t *TreeObj) Find(name string) *TreeEntry {
	for i := range t.Entries {
		if t.Entries[i].Name == name {
			return &t.Entries[i]
		}
	}
	return nil
}

// Signature identifies the author or committer of a commit.
type Signature struct {
	Name  string
	Email string
	When  int64  // unix timestamp
	TZ    string // timezone offset, e.g. "+0200"
}

// CommitObj represents a commit pointing to a tree with metadata.
// Parent is empty for root commits; at most one parent is supported.
type CommitObj struct {
	TreeHash  Hash
	Parent    Hash
	Author    Signature
	Committer Signature
	Message   string
}

// IsRoot reports whether the commit has no parent.
func (c *CommitObj) IsRoot() bool {
	return c.Parent == ""
}
