package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/repo"
)

// fixture is a source repository plus the pack covering all of its branches.
type fixture struct {
	main object.Hash
	dev  object.Hash
	pack []byte
}

func buildFixture(t *testing.T) *fixture {
	t.Helper()

	src, err := repo.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init source: %v", err)
	}
	sig := object.Signature{Name: "Fixture", Email: "fixture@example.com", When: 1700000000, TZ: "+0000"}

	write := func(rel, content string) {
		abs := filepath.Join(src.RootDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	write("readme.txt", "clone me\n")
	write("sub/data.txt", "payload\n")
	if err := src.Add([]string{"readme.txt", "sub/data.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	dev, err := src.Commit("base", sig)
	if err != nil {
		t.Fatalf("first Commit: %v", err)
	}

	write("readme.txt", "clone me, updated\n")
	if err := src.Add([]string{"readme.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	main, err := src.Commit("update readme", sig)
	if err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	reachable, err := object.ReachableSet(src.Store, main, dev)
	if err != nil {
		t.Fatalf("ReachableSet: %v", err)
	}
	hashes := make([]object.Hash, 0, len(reachable))
	for h := range reachable {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	var packBuf bytes.Buffer
	pw, err := object.NewPackWriter(&packBuf, uint32(len(hashes)))
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	for _, h := range hashes {
		objType, data, err := src.Store.Read(h)
		if err != nil {
			t.Fatalf("Read %s: %v", h, err)
		}
		if err := pw.WriteEntry(objType, data); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
	}
	if err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	return &fixture{main: main, dev: dev, pack: packBuf.Bytes()}
}

// serveFixture runs a smart-HTTP upload-pack server for the fixture and
// records the negotiation bodies it receives.
func serveFixture(t *testing.T, fx *fixture) (*httptest.Server, func() string) {
	t.Helper()

	var mu sync.Mutex
	var lastBody string

	mux := http.NewServeMux()
	mux.HandleFunc("/fixture.git/info/refs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("service") != "git-upload-pack" {
			http.Error(w, "unknown service", http.StatusBadRequest)
			return
		}
		WritePktString(w, "# service=git-upload-pack\n")
		WriteFlush(w)
		WritePktString(w, string(fx.main)+" HEAD\x00side-band-64k ofs-delta symref=HEAD:refs/heads/main\n")
		WritePktString(w, string(fx.main)+" refs/heads/main\n")
		WritePktString(w, string(fx.dev)+" refs/heads/dev\n")
		WriteFlush(w)
	})
	mux.HandleFunc("/fixture.git/git-upload-pack", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		lastBody = string(body)
		mu.Unlock()

		WritePktString(w, "NAK\n")
		WritePkt(w, append([]byte{SidebandProgress}, "unpacking objects\n"...))
		// Chunk the pack across several data frames.
		for off := 0; off < len(fx.pack); off += 1024 {
			end := off + 1024
			if end > len(fx.pack) {
				end = len(fx.pack)
			}
			WritePkt(w, append([]byte{SidebandData}, fx.pack[off:end]...))
		}
		WriteFlush(w)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, func() string {
		mu.Lock()
		defer mu.Unlock()
		return lastBody
	}
}

func TestCloneEndToEnd(t *testing.T) {
	fx := buildFixture(t)
	srv, lastBody := serveFixture(t, fx)

	dest := filepath.Join(t.TempDir(), "clone")
	var progress strings.Builder
	remoteURL := srv.URL + "/fixture.git"

	r, err := Clone(context.Background(), remoteURL, dest, CloneOptions{
		OnProgress: func(msg string) { progress.WriteString(msg) },
	})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	// Both advertised branches exist locally at the advertised tips.
	got, err := r.ResolveRef("main")
	if err != nil || got != fx.main {
		t.Fatalf("main = %s, %v, want %s", got, err, fx.main)
	}
	got, err = r.ResolveRef("dev")
	if err != nil || got != fx.dev {
		t.Fatalf("dev = %s, %v, want %s", got, err, fx.dev)
	}

	// HEAD is symbolic to the remote's default branch.
	head, err := r.Head()
	if err != nil || head != "refs/heads/main" {
		t.Fatalf("HEAD = %q, %v", head, err)
	}

	// Working tree matches the default branch tip.
	data, err := os.ReadFile(filepath.Join(dest, "readme.txt"))
	if err != nil || string(data) != "clone me, updated\n" {
		t.Fatalf("readme.txt = %q, %v", data, err)
	}
	data, err = os.ReadFile(filepath.Join(dest, "sub", "data.txt"))
	if err != nil || string(data) != "payload\n" {
		t.Fatalf("sub/data.txt = %q, %v", data, err)
	}

	entries, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, e := range entries {
		if e.IndexStatus != repo.StatusClean || e.WorkStatus != repo.StatusClean {
			t.Fatalf("%q not clean after clone: %+v", e.Path, e)
		}
	}

	url, err := r.RemoteURL("origin")
	if err != nil || url != remoteURL {
		t.Fatalf("origin = %q, %v", url, err)
	}

	// The negotiation asked for both tips and terminated with done.
	body := lastBody()
	if !strings.Contains(body, "want "+string(fx.main)) || !strings.Contains(body, "want "+string(fx.dev)) {
		t.Fatalf("negotiation body missing wants: %q", body)
	}
	if !strings.Contains(body, "done\n") {
		t.Fatalf("negotiation body missing done: %q", body)
	}

	// Side-band progress reached the callback.
	if !strings.Contains(progress.String(), "unpacking objects") {
		t.Fatalf("progress output = %q", progress.String())
	}
}

// capFixtureServer serves the fixture advertising only the given capability
// string. With side-band-64k absent the pack is sent raw after NAK.
func capFixtureServer(t *testing.T, fx *fixture, caps string) (*httptest.Server, func() string) {
	t.Helper()

	var mu sync.Mutex
	var lastBody string

	mux := http.NewServeMux()
	mux.HandleFunc("/fixture.git/info/refs", func(w http.ResponseWriter, r *http.Request) {
		WritePktString(w, "# service=git-upload-pack\n")
		WriteFlush(w)
		WritePktString(w, string(fx.main)+" refs/heads/main\x00"+caps+"\n")
		WriteFlush(w)
	})
	mux.HandleFunc("/fixture.git/git-upload-pack", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		lastBody = string(body)
		mu.Unlock()

		WritePktString(w, "NAK\n")
		if strings.Contains(caps, "side-band-64k") {
			WritePkt(w, append([]byte{SidebandData}, fx.pack...))
			WriteFlush(w)
		} else {
			w.Write(fx.pack)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, func() string {
		mu.Lock()
		defer mu.Unlock()
		return lastBody
	}
}

func TestFetchPackRequestsOnlyAdvertisedCapabilities(t *testing.T) {
	fx := buildFixture(t)

	t.Run("sideband without ofs-delta", func(t *testing.T) {
		srv, lastBody := capFixtureServer(t, fx, "side-band-64k")
		client := NewClient(srv.URL + "/fixture.git")

		adv, err := client.DiscoverRefs(context.Background())
		if err != nil {
			t.Fatalf("DiscoverRefs: %v", err)
		}
		pack, err := client.FetchPack(context.Background(), adv, []object.Hash{fx.main})
		if err != nil {
			t.Fatalf("FetchPack: %v", err)
		}
		if !bytes.Equal(pack, fx.pack) {
			t.Fatalf("pack bytes differ: got %d, want %d", len(pack), len(fx.pack))
		}

		body := lastBody()
		if strings.Contains(body, "ofs-delta") {
			t.Fatalf("request asked for unadvertised ofs-delta: %q", body)
		}
		if !strings.Contains(body, "side-band-64k") {
			t.Fatalf("request missing advertised side-band-64k: %q", body)
		}
	})

	t.Run("no capabilities, raw pack", func(t *testing.T) {
		srv, lastBody := capFixtureServer(t, fx, "")
		client := NewClient(srv.URL + "/fixture.git")

		adv, err := client.DiscoverRefs(context.Background())
		if err != nil {
			t.Fatalf("DiscoverRefs: %v", err)
		}
		pack, err := client.FetchPack(context.Background(), adv, []object.Hash{fx.main})
		if err != nil {
			t.Fatalf("FetchPack: %v", err)
		}
		if !bytes.Equal(pack, fx.pack) {
			t.Fatalf("pack bytes differ: got %d, want %d", len(pack), len(fx.pack))
		}

		body := lastBody()
		if strings.Contains(body, "ofs-delta") || strings.Contains(body, "side-band-64k") {
			t.Fatalf("request asked for unadvertised capabilities: %q", body)
		}
		if !strings.Contains(body, "want "+string(fx.main)+"\n") {
			t.Fatalf("bare want line not framed as expected: %q", body)
		}
	})
}

func TestCloneServerErrorChannel(t *testing.T) {
	fx := buildFixture(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/fixture.git/info/refs", func(w http.ResponseWriter, r *http.Request) {
		WritePktString(w, "# service=git-upload-pack\n")
		WriteFlush(w)
		WritePktString(w, string(fx.main)+" refs/heads/main\x00side-band-64k ofs-delta\n")
		WriteFlush(w)
	})
	mux.HandleFunc("/fixture.git/git-upload-pack", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		WritePktString(w, "NAK\n")
		WritePkt(w, append([]byte{SidebandError}, "repository is migrating"...))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "clone")
	_, err := Clone(context.Background(), srv.URL+"/fixture.git", dest, CloneOptions{})

	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("err = %v, want ServerError", err)
	}
	if serverErr.Message != "repository is migrating" {
		t.Fatalf("message = %q", serverErr.Message)
	}

	// The transfer failed before anything was written locally.
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("destination exists after failed clone: %v", statErr)
	}
}

func TestCloneRejectsNonOKDiscovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	_, err := Clone(context.Background(), srv.URL+"/missing.git", filepath.Join(t.TempDir(), "clone"), CloneOptions{})
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}
