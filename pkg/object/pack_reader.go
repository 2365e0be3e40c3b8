package object

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackObject is one fully materialized object decoded from a pack stream.
type PackObject struct {
	Type ObjectType
	Data []byte
	Hash Hash
}

// packEntry is one raw entry as it appears in the stream, before delta
// resolution.
type packEntry struct {
	ptype      PackObjectType
	offset     uint64 // header start, measured from the start of the pack
	data       []byte // decompressed payload: object bytes or delta stream
	baseOffset uint64 // OFS_DELTA: absolute offset of the base entry
	baseHash   Hash   // REF_DELTA: id of the base object

	resolved bool
	objType  ObjectType
	result   []byte
}

// ReadPack parses a complete pack byte slice, verifies the trailing
// checksum, resolves deltas, and returns every object in stream order.
//
// Delta bases are not required to precede their deltas: all entries are
// indexed first (by offset, and by id once materialized), direct objects are
// materialized, and deltas are then resolved by memoized recursion until a
// fixpoint is reached.
func ReadPack(data []byte) ([]PackObject, error) {
	if len(data) < packHeaderSize+sha1.Size {
		return nil, fmt.Errorf("pack too short: %d bytes", len(data))
	}

	payload := data[:len(data)-sha1.Size]
	trailer := data[len(data)-sha1.Size:]

	sum := sha1.Sum(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, ErrChecksumMismatch
	}

	header, err := UnmarshalPackHeader(payload[:packHeaderSize])
	if err != nil {
		return nil, err
	}

	entries, err := scanPackEntries(payload, header.NumObjects)
	if err != nil {
		return nil, err
	}
	if err := resolvePackEntries(entries); err != nil {
		return nil, err
	}

	out := make([]PackObject, 0, len(entries))
	for _, e := range entries {
		out = append(out, PackObject{
			Type: e.objType,
			Data: e.result,
			Hash: HashObject(e.objType, e.result),
		})
	}
	return out, nil
}

// ReadPackFromReader reads a complete pack stream from r and delegates to
// ReadPack for decode and verification.
func ReadPackFromReader(r io.Reader) ([]PackObject, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	return ReadPack(data)
}

// scanPackEntries decodes every entry header and payload without resolving
// deltas, recording each entry's absolute offset.
func scanPackEntries(payload []byte, count uint32) ([]*packEntry, error) {
	offset := packHeaderSize
	entries := make([]*packEntry, 0, count)

	for i := uint32(0); i < count; i++ {
		entry := &packEntry{offset: uint64(offset)}

		ptype, size, n, err := decodePackEntryHeader(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entry.ptype = ptype
		offset += n

		switch ptype {
		case PackCommit, PackTree, PackBlob:
		case PackOfsDelta:
			dist, n, err := decodeOfsDeltaDistance(payload[offset:])
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			offset += n
			if dist == 0 || dist > entry.offset {
				return nil, fmt.Errorf("entry %d: ofs-delta distance %d out of range", i, dist)
			}
			entry.baseOffset = entry.offset - dist
		case PackRefDelta:
			if len(payload[offset:]) < RawHashSize {
				return nil, fmt.Errorf("entry %d: truncated ref-delta base id", i)
			}
			h, err := HashFromRaw(payload[offset : offset+RawHashSize])
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			entry.baseHash = h
			offset += RawHashSize
		default:
			return nil, fmt.Errorf("entry %d: unsupported pack type %d", i, ptype)
		}

		if offset >= len(payload) {
			return nil, fmt.Errorf("entry %d: missing compressed payload", i)
		}
		raw, consumed, err := inflatePackPayload(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if uint64(len(raw)) != size {
			return nil, fmt.Errorf("entry %d: size mismatch header=%d decoded=%d", i, size, len(raw))
		}
		entry.data = raw
		offset += consumed

		entries = append(entries, entry)
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("pack has %d trailing undecoded bytes", len(payload)-offset)
	}
	return entries, nil
}

// inflatePackPayload decompresses one zlib stream from the head of data,
// returning the decompressed bytes and the count of compressed bytes
// consumed.
func inflatePackPayload(data []byte) ([]byte, int, error) {
	sub := bytes.NewReader(data)
	zr, err := zlib.NewReader(sub)
	if err != nil {
		return nil, 0, fmt.Errorf("zlib reader: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return nil, 0, fmt.Errorf("decompress: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, 0, fmt.Errorf("close zlib stream: %w", err)
	}
	return raw, len(data) - sub.Len(), nil
}

// resolvePackEntries materializes every entry. Direct objects resolve
// immediately; deltas resolve against their base through memoized recursion.
// REF_DELTA bases may appear later in the stream than the delta, so
// resolution loops until no progress can be made.
func resolvePackEntries(entries []*packEntry) error {
	byOffset := make(map[uint64]*packEntry, len(entries))
	byHash := make(map[Hash]*packEntry, len(entries))

	for _, e := range entries {
		byOffset[e.offset] = e
	}

	markResolved := func(e *packEntry, objType ObjectType, result []byte) {
		e.resolved = true
		e.objType = objType
		e.result = result
		byHash[HashObject(objType, result)] = e
	}

	// First pass: materialize all direct objects.
	for _, e := range entries {
		if e.ptype == PackOfsDelta || e.ptype == PackRefDelta {
			continue
		}
		objType, err := objectTypeOf(e.ptype)
		if err != nil {
			return err
		}
		markResolved(e, objType, e.data)
	}

	// Second pass: resolve deltas until fixpoint. Each round must resolve at
	// least one entry, so the loop terminates.
	var resolve func(e *packEntry) (bool, error)
	resolve = func(e *packEntry) (bool, error) {
		if e.resolved {
			return true, nil
		}

		var base *packEntry
		switch e.ptype {
		case PackOfsDelta:
			base = byOffset[e.baseOffset]
			if base == nil {
				return false, fmt.Errorf("ofs-delta at %d: no entry at base offset %d", e.offset, e.baseOffset)
			}
			// Offset bases always precede the delta; recurse directly.
			if ok, err := resolve(base); err != nil || !ok {
				return ok, err
			}
		case PackRefDelta:
			base = byHash[e.baseHash]
			if base == nil {
				// Base not materialized yet; retry next round.
				return false, nil
			}
		}

		result, err := applyDelta(base.result, e.data)
		if err != nil {
			return false, fmt.Errorf("delta at %d: %w", e.offset, err)
		}
		markResolved(e, base.objType, result)
		return true, nil
	}

	for {
		pending := 0
		progress := false
		for _, e := range entries {
			if e.resolved {
				continue
			}
			ok, err := resolve(e)
			if err != nil {
				return err
			}
			if ok {
				progress = true
			} else {
				pending++
			}
		}
		if pending == 0 {
			return nil
		}
		if !progress {
			return fmt.Errorf("%d deltas have no resolvable base in pack", pending)
		}
	}
}
