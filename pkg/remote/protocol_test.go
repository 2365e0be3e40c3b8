package remote

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
)

func fakeHash(seed string) object.Hash {
	return object.HashObject(object.TypeBlob, []byte(seed))
}

// writeAdvertisement frames an info/refs response body. Each ref is
// "hash name", with caps appended after a NUL on the first line.
func writeAdvertisement(t *testing.T, caps string, refs ...string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := WritePktString(&buf, "# service=git-upload-pack\n"); err != nil {
		t.Fatalf("frame service header: %v", err)
	}
	if err := WriteFlush(&buf); err != nil {
		t.Fatalf("frame flush: %v", err)
	}
	for i, ref := range refs {
		line := ref
		if i == 0 {
			line += "\x00" + caps
		}
		if err := WritePktString(&buf, line+"\n"); err != nil {
			t.Fatalf("frame ref line: %v", err)
		}
	}
	if err := WriteFlush(&buf); err != nil {
		t.Fatalf("frame flush: %v", err)
	}
	return &buf
}

func TestParseAdvertisement(t *testing.T) {
	h1 := fakeHash("one")
	h2 := fakeHash("two")
	body := writeAdvertisement(t, "side-band-64k ofs-delta symref=HEAD:refs/heads/main",
		string(h1)+" HEAD",
		string(h1)+" refs/heads/main",
		string(h2)+" refs/heads/dev",
	)

	adv, err := parseAdvertisement(NewPktReader(body))
	if err != nil {
		t.Fatalf("parseAdvertisement: %v", err)
	}

	if adv.Refs["HEAD"] != h1 || adv.Refs["refs/heads/dev"] != h2 {
		t.Fatalf("refs = %+v", adv.Refs)
	}
	if !adv.Caps.Has("side-band-64k") || !adv.Caps.Has("symref") {
		t.Fatalf("caps = %s", adv.Caps)
	}
	if got := adv.Caps.Value("symref"); got != "HEAD:refs/heads/main" {
		t.Fatalf("symref value = %q", got)
	}

	branches := adv.Branches()
	if len(branches) != 2 || branches["main"] != h1 || branches["dev"] != h2 {
		t.Fatalf("branches = %+v", branches)
	}
}

func TestParseAdvertisementMissingServiceHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePktString(&buf, string(fakeHash("x"))+" refs/heads/main\n"); err != nil {
		t.Fatalf("frame: %v", err)
	}
	if err := WriteFlush(&buf); err != nil {
		t.Fatalf("frame: %v", err)
	}

	_, err := parseAdvertisement(NewPktReader(&buf))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestParseAdvertisementBadRefHash(t *testing.T) {
	body := writeAdvertisement(t, "", "not-a-hash refs/heads/main")
	_, err := parseAdvertisement(NewPktReader(body))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestParseAdvertisementTruncated(t *testing.T) {
	body := writeAdvertisement(t, "", string(fakeHash("x"))+" refs/heads/main")
	// Chop off the terminating flush.
	truncated := strings.TrimSuffix(body.String(), "0000")
	_, err := parseAdvertisement(NewPktReader(strings.NewReader(truncated)))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestDefaultBranchOrder(t *testing.T) {
	hMain := fakeHash("main")
	hDev := fakeHash("dev")

	t.Run("symref wins", func(t *testing.T) {
		adv := &Advertisement{
			Refs: map[string]object.Hash{
				"HEAD":            hDev,
				"refs/heads/main": hMain,
				"refs/heads/dev":  hDev,
			},
			Caps: ParseCapabilities("symref=HEAD:refs/heads/dev"),
		}
		name, h, err := adv.DefaultBranch()
		if err != nil || name != "dev" || h != hDev {
			t.Fatalf("default = %q %s, %v", name, h, err)
		}
	})

	t.Run("HEAD hash match prefers main", func(t *testing.T) {
		adv := &Advertisement{
			Refs: map[string]object.Hash{
				"HEAD":             hMain,
				"refs/heads/main":  hMain,
				"refs/heads/alias": hMain,
			},
			Caps: ParseCapabilities(""),
		}
		name, h, err := adv.DefaultBranch()
		if err != nil || name != "main" || h != hMain {
			t.Fatalf("default = %q %s, %v", name, h, err)
		}
	})

	t.Run("no HEAD falls back to main", func(t *testing.T) {
		adv := &Advertisement{
			Refs: map[string]object.Hash{
				"refs/heads/main": hMain,
				"refs/heads/dev":  hDev,
			},
			Caps: ParseCapabilities(""),
		}
		name, _, err := adv.DefaultBranch()
		if err != nil || name != "main" {
			t.Fatalf("default = %q, %v", name, err)
		}
	})

	t.Run("no main takes first sorted", func(t *testing.T) {
		adv := &Advertisement{
			Refs: map[string]object.Hash{
				"refs/heads/zeta":  hDev,
				"refs/heads/alpha": hMain,
			},
			Caps: ParseCapabilities(""),
		}
		name, h, err := adv.DefaultBranch()
		if err != nil || name != "alpha" || h != hMain {
			t.Fatalf("default = %q %s, %v", name, h, err)
		}
	})

	t.Run("no branches errors", func(t *testing.T) {
		adv := &Advertisement{Refs: map[string]object.Hash{"HEAD": hMain}, Caps: ParseCapabilities("")}
		if _, _, err := adv.DefaultBranch(); !errors.Is(err, ErrProtocol) {
			t.Fatalf("err = %v, want ErrProtocol", err)
		}
	})
}
