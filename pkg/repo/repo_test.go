package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
)

func testSignature() object.Signature {
	return object.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  1700000000,
		TZ:    "+0000",
	}
}

func writeWorkFile(t *testing.T, r *Repo, rel, content string) {
	t.Helper()
	abs := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestInitCreatesLayout(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, sub := range []string{"objects", filepath.Join("refs", "heads")} {
		info, err := os.Stat(filepath.Join(r.GritDir, sub))
		if err != nil || !info.IsDir() {
			t.Fatalf("missing directory %s: %v", sub, err)
		}
	}

	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != "refs/heads/main" {
		t.Fatalf("HEAD = %q, want refs/heads/main", head)
	}

	if _, err := Init(dir); err == nil {
		t.Fatal("second Init in the same directory succeeded")
	}
}

func TestOpenWalksUpward(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}

	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r, err := Open(nested)
	if err != nil {
		t.Fatalf("Open from nested dir: %v", err)
	}
	if r.RootDir != dir {
		t.Fatalf("RootDir = %q, want %q", r.RootDir, dir)
	}

	_, err = Open(t.TempDir())
	if !errors.Is(err, ErrNotRepository) {
		t.Fatalf("Open outside a repo: err = %v, want ErrNotRepository", err)
	}
}

func TestResolveRefAndUpdateRef(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, err = r.ResolveRef("HEAD")
	if !errors.Is(err, ErrUnknownRef) {
		t.Fatalf("fresh repo HEAD resolve: err = %v, want ErrUnknownRef", err)
	}

	h := object.HashObject(object.TypeCommit, []byte("fake"))
	if err := r.UpdateRef("refs/heads/main", h); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	for _, name := range []string{"HEAD", "main", "refs/heads/main"} {
		got, err := r.ResolveRef(name)
		if err != nil {
			t.Fatalf("ResolveRef(%s): %v", name, err)
		}
		if got != h {
			t.Fatalf("ResolveRef(%s) = %s, want %s", name, got, h)
		}
	}

	// Ref file is the hex hash plus newline.
	raw, err := os.ReadFile(filepath.Join(r.GritDir, "refs", "heads", "main"))
	if err != nil {
		t.Fatalf("read ref file: %v", err)
	}
	if string(raw) != string(h)+"\n" {
		t.Fatalf("ref file = %q", raw)
	}
}

func TestDetachedHead(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	h := object.HashObject(object.TypeCommit, []byte("detached"))
	if err := r.SetHead("", h); err != nil {
		t.Fatalf("SetHead: %v", err)
	}

	got, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	if got != h {
		t.Fatalf("detached HEAD = %s, want %s", got, h)
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "" {
		t.Fatalf("CurrentBranch on detached HEAD = %q, want empty", branch)
	}
}
