package object

import (
	"crypto/sha1"
	"fmt"
	"hash"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackWriter streams a pack: header, entries, and a trailing SHA-1 over
// everything written before it. All writes flow through the running digest so
// the trailer is always consistent with the stream.
type PackWriter struct {
	w        io.Writer
	digest   hash.Hash
	offset   uint64
	written  uint32
	expected uint32
	finished bool
}

// NewPackWriter writes the pack header for numObjects entries and returns a
// writer positioned at the first entry.
func NewPackWriter(w io.Writer, numObjects uint32) (*PackWriter, error) {
	pw := &PackWriter{
		w:        w,
		digest:   sha1.New(),
		expected: numObjects,
	}
	header := PackHeader{Version: supportedPackVersion, NumObjects: numObjects}
	if err := pw.write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset returns the stream offset where the next entry's header will
// begin. Callers record it before WriteEntry to compute OFS_DELTA distances.
func (pw *PackWriter) CurrentOffset() uint64 {
	return pw.offset
}

// WriteEntry appends a direct (non-delta) object entry.
func (pw *PackWriter) WriteEntry(objType ObjectType, data []byte) error {
	pt, err := packTypeOf(objType)
	if err != nil {
		return err
	}
	return pw.writeRaw(pt, nil, data)
}

// WriteOfsDelta appends an OFS_DELTA entry whose base entry header starts at
// baseOffset in this stream. The delta payload encodes target against the
// base's fully materialized bytes.
func (pw *PackWriter) WriteOfsDelta(baseOffset uint64, base, target []byte) error {
	if baseOffset >= pw.offset {
		return fmt.Errorf("ofs-delta base offset %d is not behind current offset %d", baseOffset, pw.offset)
	}
	dist := pw.offset - baseOffset
	return pw.writeRaw(PackOfsDelta, encodeOfsDeltaDistance(dist), buildInsertOnlyDelta(base, target))
}

// WriteRefDelta appends a REF_DELTA entry naming its base by object id. The
// base object may appear anywhere in the stream, including after this entry.
func (pw *PackWriter) WriteRefDelta(baseHash Hash, base, target []byte) error {
	raw, err := RawDigest(baseHash)
	if err != nil {
		return fmt.Errorf("ref-delta base: %w", err)
	}
	return pw.writeRaw(PackRefDelta, raw, buildInsertOnlyDelta(base, target))
}

// writeRaw writes one entry: header, optional pre-payload bytes (delta base
// reference), then the zlib-compressed payload.
func (pw *PackWriter) writeRaw(pt PackObjectType, preamble, payload []byte) error {
	if pw.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if pw.written == pw.expected {
		return fmt.Errorf("pack writer: all %d declared entries already written", pw.expected)
	}

	if err := pw.write(encodePackEntryHeader(pt, uint64(len(payload)))); err != nil {
		return fmt.Errorf("write entry header: %w", err)
	}
	if len(preamble) > 0 {
		if err := pw.write(preamble); err != nil {
			return fmt.Errorf("write entry base reference: %w", err)
		}
	}

	zw := zlib.NewWriter(io.MultiWriter(pw.w, pw.digest, countWriter{&pw.offset}))
	if _, err := zw.Write(payload); err != nil {
		return fmt.Errorf("compress entry payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush entry payload: %w", err)
	}

	pw.written++
	return nil
}

// Finish writes the SHA-1 trailer and seals the writer.
func (pw *PackWriter) Finish() error {
	if pw.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if pw.written != pw.expected {
		return fmt.Errorf("pack writer: wrote %d of %d declared entries", pw.written, pw.expected)
	}
	pw.finished = true

	sum := pw.digest.Sum(nil)
	if _, err := pw.w.Write(sum); err != nil {
		return fmt.Errorf("write pack trailer: %w", err)
	}
	return nil
}

func (pw *PackWriter) write(data []byte) error {
	if _, err := pw.w.Write(data); err != nil {
		return err
	}
	pw.digest.Write(data)
	pw.offset += uint64(len(data))
	return nil
}

// countWriter accumulates byte counts for writes that bypass pw.write, such
// as the compressed stream produced inside zlib.
type countWriter struct {
	n *uint64
}

func (c countWriter) Write(p []byte) (int, error) {
	*c.n += uint64(len(p))
	return len(p), nil
}
