package remote

import (
	"fmt"
	"io"
)

// Side-band channel identifiers. When the server multiplexes, each pkt-line
// payload begins with a channel byte.
const (
	SidebandData     byte = 0x01 // pack data, consumed
	SidebandProgress byte = 0x02 // progress text, surfaced to a callback
	SidebandError    byte = 0x03 // error text, aborts the transfer
)

// SidebandReader presents the data channel of a side-band multiplexed
// pkt-line stream as a sequential io.Reader. Progress frames go to the
// optional callback; an error frame terminates the read with a ServerError.
// The stream ends at a flush marker or EOF.
type SidebandReader struct {
	pr         *PktReader
	onProgress func(string)
	buf        []byte
	done       bool
}

func NewSidebandReader(pr *PktReader, onProgress func(string)) *SidebandReader {
	return &SidebandReader{pr: pr, onProgress: onProgress}
}

func (sr *SidebandReader) Read(p []byte) (int, error) {
	for len(sr.buf) == 0 {
		if sr.done {
			return 0, io.EOF
		}
		frame, err := sr.pr.Next()
		if err == io.EOF {
			sr.done = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		if frame == nil {
			// Flush ends the multiplexed section.
			sr.done = true
			return 0, io.EOF
		}
		if len(frame) == 0 {
			return 0, fmt.Errorf("empty side-band frame: %w", ErrProtocol)
		}

		channel, payload := frame[0], frame[1:]
		switch channel {
		case SidebandData:
			sr.buf = payload
		case SidebandProgress:
			if sr.onProgress != nil {
				sr.onProgress(string(payload))
			}
		case SidebandError:
			return 0, &ServerError{Message: string(payload)}
		default:
			return 0, fmt.Errorf("unknown side-band channel %d: %w", channel, ErrProtocol)
		}
	}

	n := copy(p, sr.buf)
	sr.buf = sr.buf[n:]
	return n, nil
}
