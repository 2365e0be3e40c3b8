package remote

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gritvcs/grit/pkg/object"
)

const (
	uploadService = "git-upload-pack"

	capSideband64k = "side-band-64k"
	capOfsDelta    = "ofs-delta"
)

// ErrProtocol is returned for malformed framing, missing service headers,
// and other violations of the wire format.
var ErrProtocol = errors.New("protocol error")

// ServerError carries error text reported by the remote over the side-band
// error channel.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("remote error: %s", e.Message)
}

// Capabilities represents the space-separated capability set a server
// advertises on its first ref line.
type Capabilities struct {
	set map[string]struct{}
}

// ParseCapabilities parses a space-separated capability string.
func ParseCapabilities(raw string) Capabilities {
	caps := Capabilities{set: make(map[string]struct{})}
	for _, c := range strings.Fields(raw) {
		caps.set[c] = struct{}{}
	}
	return caps
}

// Has returns true if the capability is present. Valued capabilities
// (key=value) match on the key.
func (c Capabilities) Has(name string) bool {
	if _, ok := c.set[name]; ok {
		return true
	}
	for k := range c.set {
		if strings.HasPrefix(k, name+"=") {
			return true
		}
	}
	return false
}

// Value returns the value of a key=value capability, or "".
func (c Capabilities) Value(name string) string {
	prefix := name + "="
	for k := range c.set {
		if strings.HasPrefix(k, prefix) {
			return k[len(prefix):]
		}
	}
	return ""
}

// String returns a sorted space-separated capability string.
func (c Capabilities) String() string {
	names := make([]string, 0, len(c.set))
	for k := range c.set {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// Advertisement is the parsed result of ref discovery.
type Advertisement struct {
	Refs map[string]object.Hash // full ref name → hash (includes HEAD)
	Caps Capabilities
}

// Branches returns the advertised branch heads keyed by short name.
func (a *Advertisement) Branches() map[string]object.Hash {
	const prefix = "refs/heads/"
	out := make(map[string]object.Hash)
	for name, h := range a.Refs {
		if strings.HasPrefix(name, prefix) {
			out[strings.TrimPrefix(name, prefix)] = h
		}
	}
	return out
}

// DefaultBranch picks the branch a fresh clone should check out.
//
// Order: the symref=HEAD:refs/heads/X capability when advertised; otherwise
// the branch whose hash matches the advertised HEAD; otherwise "main";
// otherwise the lexicographically first branch.
func (a *Advertisement) DefaultBranch() (string, object.Hash, error) {
	branches := a.Branches()
	if len(branches) == 0 {
		return "", "", fmt.Errorf("remote advertised no branches: %w", ErrProtocol)
	}

	if symref := a.Caps.Value("symref"); strings.HasPrefix(symref, "HEAD:refs/heads/") {
		name := strings.TrimPrefix(symref, "HEAD:refs/heads/")
		if h, ok := branches[name]; ok {
			return name, h, nil
		}
	}

	if headHash, ok := a.Refs["HEAD"]; ok {
		if h, ok := branches["main"]; ok && h == headHash {
			return "main", h, nil
		}
		names := make([]string, 0, len(branches))
		for name := range branches {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if branches[name] == headHash {
				return name, headHash, nil
			}
		}
	}

	if h, ok := branches["main"]; ok {
		return "main", h, nil
	}

	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0], branches[names[0]], nil
}

// parseAdvertisement parses the pkt-line body of an info/refs response.
//
// Expected shape:
//
//	# service=git-upload-pack
//	<flush>
//	<hash> <refname>\0<capabilities>
//	<hash> <refname>
//	...
//	<flush>
func parseAdvertisement(pr *PktReader) (*Advertisement, error) {
	first, err := pr.Next()
	if err != nil {
		return nil, fmt.Errorf("read service header: %w", err)
	}
	if first == nil || strings.TrimRight(string(first), "\n") != "# service="+uploadService {
		return nil, fmt.Errorf("missing service header (got %q): %w", first, ErrProtocol)
	}

	// Flush terminating the service header section.
	sep, err := pr.Next()
	if err != nil {
		return nil, fmt.Errorf("read service separator: %w", err)
	}
	if sep != nil {
		return nil, fmt.Errorf("expected flush after service header: %w", ErrProtocol)
	}

	adv := &Advertisement{Refs: make(map[string]object.Hash)}
	firstRef := true
	for {
		line, err := pr.Next()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("advertisement truncated: %w", ErrProtocol)
			}
			return nil, err
		}
		if line == nil {
			break // terminating flush
		}

		text := strings.TrimRight(string(line), "\n")
		if firstRef {
			// The first ref line carries the capability list after a NUL.
			refPart, capPart, _ := strings.Cut(text, "\x00")
			adv.Caps = ParseCapabilities(capPart)
			text = refPart
			firstRef = false
		}

		hashStr, refName, ok := strings.Cut(text, " ")
		if !ok || refName == "" {
			return nil, fmt.Errorf("malformed ref line %q: %w", text, ErrProtocol)
		}
		h := object.Hash(hashStr)
		if !object.ValidHash(h) {
			return nil, fmt.Errorf("malformed ref hash %q: %w", hashStr, ErrProtocol)
		}
		adv.Refs[refName] = h
	}

	if len(adv.Refs) == 0 {
		return nil, fmt.Errorf("advertisement listed no refs: %w", ErrProtocol)
	}
	return adv, nil
}
