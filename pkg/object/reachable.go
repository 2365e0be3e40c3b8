package object

import "fmt"

// ReachableSet walks the object graph from the given start hashes and
// returns every reachable object id: commits through their parents and
// trees, trees through their entries, blobs as leaves.
func ReachableSet(s *Store, starts ...Hash) (map[Hash]bool, error) {
	seen := make(map[Hash]bool)
	stack := make([]Hash, 0, len(starts))
	for _, h := range starts {
		if h != "" {
			stack = append(stack, h)
		}
	}

	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[h] {
			continue
		}
		seen[h] = true

		objType, data, err := s.Read(h)
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", h, err)
		}
		refs, err := referencedHashes(objType, data)
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", h, err)
		}
		for _, ref := range refs {
			if !seen[ref] {
				stack = append(stack, ref)
			}
		}
	}
	return seen, nil
}

// referencedHashes returns the ids an object points at directly.
func referencedHashes(objType ObjectType, data []byte) ([]Hash, error) {
	switch objType {
	case TypeBlob:
		return nil, nil
	case TypeTree:
		tr, err := UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		out := make([]Hash, 0, len(tr.Entries))
		for _, e := range tr.Entries {
			out = append(out, e.Hash)
		}
		return out, nil
	case TypeCommit:
		c, err := UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		out := []Hash{c.TreeHash}
		if c.Parent != "" {
			out = append(out, c.Parent)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown object type %q", objType)
}
