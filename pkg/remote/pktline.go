package remote

import (
	"fmt"
	"io"
	"strconv"
)

// pkt-line framing: every line is prefixed by a 4-character hexadecimal byte
// count that includes the prefix itself. A count of zero ("0000") is a flush
// marker delimiting sections of the stream.

const (
	pktLenSize = 4
	pktMaxData = 65516 // 65520 - 4, the largest payload a length field allows
)

// WritePkt writes one pkt-line carrying data.
func WritePkt(w io.Writer, data []byte) error {
	if len(data) > pktMaxData {
		return fmt.Errorf("pkt-line payload too long: %d bytes", len(data))
	}
	if _, err := fmt.Fprintf(w, "%04x", len(data)+pktLenSize); err != nil {
		return fmt.Errorf("write pkt length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write pkt payload: %w", err)
	}
	return nil
}

// WritePktString writes one pkt-line carrying a string payload.
func WritePktString(w io.Writer, s string) error {
	return WritePkt(w, []byte(s))
}

// WriteFlush writes a flush marker.
func WriteFlush(w io.Writer) error {
	if _, err := io.WriteString(w, "0000"); err != nil {
		return fmt.Errorf("write flush pkt: %w", err)
	}
	return nil
}

// PktReader reads pkt-lines from a stream.
type PktReader struct {
	r io.Reader
}

func NewPktReader(r io.Reader) *PktReader {
	return &PktReader{r: r}
}

// Next reads one pkt-line. A flush marker returns (nil, nil); a data line
// returns its payload (possibly empty but non-nil). io.EOF is returned at
// clean end of stream; malformed framing fails with ErrProtocol.
func (p *PktReader) Next() ([]byte, error) {
	lenBuf := make([]byte, pktLenSize)
	if _, err := io.ReadFull(p.r, lenBuf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read pkt length: %w: %v", ErrProtocol, err)
	}

	n, err := strconv.ParseUint(string(lenBuf), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("bad pkt length %q: %w", lenBuf, ErrProtocol)
	}
	if n == 0 {
		return nil, nil // flush
	}
	if n < pktLenSize {
		return nil, fmt.Errorf("pkt length %d below header size: %w", n, ErrProtocol)
	}

	data := make([]byte, n-pktLenSize)
	if _, err := io.ReadFull(p.r, data); err != nil {
		return nil, fmt.Errorf("read pkt payload: %w: %v", ErrProtocol, err)
	}
	return data, nil
}
