package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj to the canonical binary format. Entries
// are sorted by name before encoding, which makes the tree's hash a function
// of its contents alone. Each entry is:
//
//	"<mode> <name>\0" + 20-byte raw digest
//
// The digest is binary, not hex — the hex form is only used outside object
// bodies.
func MarshalTree(tr *TreeObj) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	prev := ""
	for i, e := range sorted {
		if e.Name == "" {
			return nil, fmt.Errorf("marshal tree: empty entry name")
		}
		if i > 0 && e.Name == prev {
			return nil, fmt.Errorf("marshal tree: duplicate entry %q", e.Name)
		}
		prev = e.Name

		mode := e.Mode
		if mode == "" {
			mode = TreeModeFile
		}
		raw, err := RawDigest(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("marshal tree entry %q: %w", e.Name, err)
		}
		fmt.Fprintf(&buf, "%s %s\x00", mode, e.Name)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses a TreeObj from its canonical binary form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing mode separator: %w", ErrCorrupt)
		}
		mode := string(data[:sp])
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing name terminator: %w", ErrCorrupt)
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < RawHashSize {
			return nil, fmt.Errorf("unmarshal tree: truncated digest for %q: %w", name, ErrCorrupt)
		}
		h, err := HashFromRaw(data[:RawHashSize])
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		data = data[RawHashSize:]

		if !validTreeMode(mode) {
			return nil, fmt.Errorf("unmarshal tree: unknown mode %q for %q: %w", mode, name, ErrCorrupt)
		}
		tr.Entries = append(tr.Entries, TreeEntry{Mode: mode, Name: name, Hash: h})
	}
	return tr, nil
}

func validTreeMode(mode string) bool {
	switch mode {
	case TreeModeDir, TreeModeFile, TreeModeExecutable, TreeModeSymlink:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree <hex>
//	parent <hex>      (omitted for root commits)
//	author Name <email> ts tz
//	committer Name <email> ts tz
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	if c.Parent != "" {
		fmt.Fprintf(&buf, "parent %s\n", string(c.Parent))
	}
	fmt.Fprintf(&buf, "author %s\n", formatSignature(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", formatSignature(c.Committer))
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator: %w", ErrCorrupt)
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q: %w", line, ErrCorrupt)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			if c.Parent != "" {
				return nil, fmt.Errorf("unmarshal commit: multiple parents are not supported: %w", ErrCorrupt)
			}
			c.Parent = Hash(val)
		case "author":
			sig, err := parseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %w", err)
			}
			c.Author = sig
		case "committer":
			sig, err := parseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %w", err)
			}
			c.Committer = sig
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q: %w", key, ErrCorrupt)
		}
	}
	return c, nil
}

// formatSignature renders "Name <email> ts tz".
func formatSignature(s Signature) string {
	tz := s.TZ
	if tz == "" {
		tz = "+0000"
	}
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When, tz)
}

func parseSignature(raw string) (Signature, error) {
	open := strings.LastIndex(raw, " <")
	if open < 0 {
		return Signature{}, fmt.Errorf("malformed signature %q: %w", raw, ErrCorrupt)
	}
	closeIdx := strings.Index(raw[open:], "> ")
	if closeIdx < 0 {
		return Signature{}, fmt.Errorf("malformed signature %q: %w", raw, ErrCorrupt)
	}
	closeIdx += open

	name := raw[:open]
	email := raw[open+2 : closeIdx]
	rest := strings.Fields(raw[closeIdx+2:])
	if len(rest) != 2 {
		return Signature{}, fmt.Errorf("malformed signature timestamp %q: %w", raw, ErrCorrupt)
	}
	when, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("bad timestamp %q: %w", rest[0], err)
	}
	return Signature{Name: name, Email: email, When: when, TZ: rest[1]}, nil
}
