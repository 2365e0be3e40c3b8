package object

import "errors"

var (
	// ErrNotFound indicates the requested object does not exist in the store.
	ErrNotFound = errors.New("object not found")

	// ErrCorrupt indicates a stored object failed decompression or header
	// validation.
	ErrCorrupt = errors.New("corrupt object")

	// ErrChecksumMismatch indicates a pack's trailing checksum does not match
	// the running hash over the preceding bytes.
	ErrChecksumMismatch = errors.New("pack checksum mismatch")
)
