package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// RawHashSize is the length of a raw (binary) object digest. HashSize is
// the length of its hex encoding, which is how ids travel everywhere outside
// object bodies.
const (
	RawHashSize = sha1.Size
	HashSize    = RawHashSize * 2
)

// HashBytes computes the raw SHA-1 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha1.Sum(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-1 of the envelope "type len\0content". The
// envelope ties the id to both the type tag and the content, so a blob and a
// tree with identical bytes never collide.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// RawDigest decodes a hex Hash into its 20-byte binary form, as embedded
// inside tree objects and pack ref-delta headers.
func RawDigest(h Hash) ([]byte, error) {
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("decode hash %q: %w", h, err)
	}
	if len(raw) != RawHashSize {
		return nil, fmt.Errorf("decode hash %q: got %d bytes, want %d", h, len(raw), RawHashSize)
	}
	return raw, nil
}

// HashFromRaw encodes a 20-byte binary digest as a hex Hash.
func HashFromRaw(raw []byte) (Hash, error) {
	if len(raw) != RawHashSize {
		return "", fmt.Errorf("raw digest: got %d bytes, want %d", len(raw), RawHashSize)
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// ValidHash reports whether h looks like a well-formed hex object id.
func ValidHash(h Hash) bool {
	if len(h) != RawHashSize*2 {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}
