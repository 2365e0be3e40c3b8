package object

import (
	"bytes"
	"errors"
	"testing"
)

func TestPackEntryHeaderRoundTrip(t *testing.T) {
	cases := []struct {
		ptype PackObjectType
		size  uint64
	}{
		{PackBlob, 0},
		{PackBlob, 15},   // fits in the first byte
		{PackTree, 16},   // first continuation byte
		{PackCommit, 300},
		{PackOfsDelta, 1 << 20},
		{PackRefDelta, 1<<32 + 7},
	}
	for _, c := range cases {
		enc := encodePackEntryHeader(c.ptype, c.size)
		ptype, size, n, err := decodePackEntryHeader(enc)
		if err != nil {
			t.Fatalf("decode(%d, %d): %v", c.ptype, c.size, err)
		}
		if ptype != c.ptype || size != c.size || n != len(enc) {
			t.Fatalf("decode(%d, %d) = (%d, %d, %d)", c.ptype, c.size, ptype, size, n)
		}
	}

	if _, _, _, err := decodePackEntryHeader(nil); err == nil {
		t.Fatal("empty header accepted")
	}
	if _, _, _, err := decodePackEntryHeader([]byte{0x80 | byte(PackBlob)<<4}); err == nil {
		t.Fatal("truncated continuation accepted")
	}
}

func TestOfsDeltaDistanceRoundTrip(t *testing.T) {
	for _, d := range []uint64{1, 127, 128, 129, 16383, 16384, 1 << 24, 1<<40 + 3} {
		enc := encodeOfsDeltaDistance(d)
		got, n, err := decodeOfsDeltaDistance(enc)
		if err != nil {
			t.Fatalf("decode(%d): %v", d, err)
		}
		if got != d || n != len(enc) {
			t.Fatalf("decode(%d) = (%d, %d), encoded %d bytes", d, got, n, len(enc))
		}
	}
}

func TestApplyDeltaCopyAndInsert(t *testing.T) {
	base := []byte("the quick brown fox jumps over the lazy dog")

	// copy "the quick " (offset 0, size 10), insert "slow ",
	// copy "brown fox" (offset 10, size 9)
	var delta bytes.Buffer
	delta.Write(encodeDeltaVarint(uint64(len(base))))
	delta.Write(encodeDeltaVarint(uint64(10 + 5 + 9)))
	delta.Write([]byte{0x90, 10})                // copy: size byte only
	delta.Write([]byte{5, 's', 'l', 'o', 'w', ' '}) // insert
	delta.Write([]byte{0x91, 10, 9})             // copy: offset byte + size byte

	got, err := applyDelta(base, delta.Bytes())
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	want := "the quick slow brown fox"
	if string(got) != want {
		t.Fatalf("result = %q, want %q", got, want)
	}
}

func TestApplyDeltaRejectsBadInput(t *testing.T) {
	base := []byte("0123456789")

	var oob bytes.Buffer
	oob.Write(encodeDeltaVarint(uint64(len(base))))
	oob.Write(encodeDeltaVarint(5))
	oob.Write([]byte{0x91, 8, 5}) // copy past end of base
	if _, err := applyDelta(base, oob.Bytes()); err == nil {
		t.Fatal("out-of-bounds copy accepted")
	}

	var wrongBase bytes.Buffer
	wrongBase.Write(encodeDeltaVarint(uint64(len(base) + 1)))
	wrongBase.Write(encodeDeltaVarint(0))
	if _, err := applyDelta(base, wrongBase.Bytes()); err == nil {
		t.Fatal("base size mismatch accepted")
	}
}

func buildTestPack(t *testing.T, write func(pw *PackWriter) error, count uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, count)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := write(pw); err != nil {
		t.Fatalf("write pack entries: %v", err)
	}
	if err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return buf.Bytes()
}

func TestPackRoundTripDirectObjects(t *testing.T) {
	blob := []byte("file contents\n")
	commit := MarshalCommit(&CommitObj{
		TreeHash: HashObject(TypeTree, nil),
		Author:   Signature{Name: "A", Email: "a@b.c", When: 1},
		Message:  "m",
	})

	pack := buildTestPack(t, func(pw *PackWriter) error {
		if err := pw.WriteEntry(TypeBlob, blob); err != nil {
			return err
		}
		return pw.WriteEntry(TypeCommit, commit)
	}, 2)

	objs, err := ReadPack(pack)
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("objects = %d, want 2", len(objs))
	}
	if objs[0].Type != TypeBlob || !bytes.Equal(objs[0].Data, blob) {
		t.Fatalf("object 0 = %s %q", objs[0].Type, objs[0].Data)
	}
	if objs[0].Hash != HashObject(TypeBlob, blob) {
		t.Fatalf("object 0 hash = %s", objs[0].Hash)
	}
	if objs[1].Type != TypeCommit || !bytes.Equal(objs[1].Data, commit) {
		t.Fatalf("object 1 = %s %q", objs[1].Type, objs[1].Data)
	}
}

func TestPackRoundTripOfsDelta(t *testing.T) {
	base := []byte("base version of the file\n")
	target := []byte("target version of the file\nwith another line\n")

	var baseOffset uint64
	pack := buildTestPack(t, func(pw *PackWriter) error {
		baseOffset = pw.CurrentOffset()
		if err := pw.WriteEntry(TypeBlob, base); err != nil {
			return err
		}
		return pw.WriteOfsDelta(baseOffset, base, target)
	}, 2)

	objs, err := ReadPack(pack)
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	if objs[1].Type != TypeBlob || !bytes.Equal(objs[1].Data, target) {
		t.Fatalf("delta object = %s %q, want blob %q", objs[1].Type, objs[1].Data, target)
	}
}

func TestPackRefDeltaBaseAppearsLater(t *testing.T) {
	base := []byte("shared base content\n")
	target := []byte("derived content\n")
	baseHash := HashObject(TypeBlob, base)

	// The delta precedes its base in the stream; resolution must defer it.
	pack := buildTestPack(t, func(pw *PackWriter) error {
		if err := pw.WriteRefDelta(baseHash, base, target); err != nil {
			return err
		}
		return pw.WriteEntry(TypeBlob, base)
	}, 2)

	objs, err := ReadPack(pack)
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	if objs[0].Type != TypeBlob || !bytes.Equal(objs[0].Data, target) {
		t.Fatalf("delta object = %s %q, want blob %q", objs[0].Type, objs[0].Data, target)
	}
	if objs[1].Hash != baseHash {
		t.Fatalf("base hash = %s, want %s", objs[1].Hash, baseHash)
	}
}

func TestPackRefDeltaMissingBase(t *testing.T) {
	base := []byte("never shipped\n")
	pack := buildTestPack(t, func(pw *PackWriter) error {
		return pw.WriteRefDelta(HashObject(TypeBlob, base), base, []byte("x"))
	}, 1)

	if _, err := ReadPack(pack); err == nil {
		t.Fatal("pack with unresolvable delta accepted")
	}
}

func TestPackChecksumMismatch(t *testing.T) {
	pack := buildTestPack(t, func(pw *PackWriter) error {
		return pw.WriteEntry(TypeBlob, []byte("payload"))
	}, 1)

	// Flip one bit inside an entry body.
	pack[packHeaderSize+2] ^= 0x01
	_, err := ReadPack(pack)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestPackWriterEnforcesDeclaredCount(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 2)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := pw.WriteEntry(TypeBlob, []byte("one")); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if err := pw.Finish(); err == nil {
		t.Fatal("Finish accepted an underfilled pack")
	}
}
