package diff

import (
	"bytes"
	"fmt"
	"strings"
)

// binaryCheckWindow is how many leading bytes are scanned for a NUL byte
// before line diffing is attempted.
const binaryCheckWindow = 8000

const noNewlineMarker = "\\ No newline at end of file\n"

// Unified produces unified-diff text for one path. A nil buffer represents a
// file absent on that side, so add and delete reduce to the same primitive.
// Identical inputs produce an empty string. If either buffer looks binary, a
// one-line binary-files-differ notice is returned instead of hunks.
func Unified(path string, oldData, newData []byte) string {
	if bytes.Equal(oldData, newData) {
		return ""
	}

	if isBinary(oldData) || isBinary(newData) {
		return fmt.Sprintf("Binary files a/%s and b/%s differ\n", path, path)
	}

	// Lines keep their terminators, so a final line missing its newline
	// compares unequal to the terminated one.
	oldLines := splitLines(oldData)
	newLines := splitLines(newData)

	ops := Myers(oldLines, newLines)
	hunks := BuildHunks(ops, DefaultContext)
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	if oldData == nil {
		b.WriteString("--- /dev/null\n")
	} else {
		fmt.Fprintf(&b, "--- a/%s\n", path)
	}
	if newData == nil {
		b.WriteString("+++ /dev/null\n")
	} else {
		fmt.Fprintf(&b, "+++ b/%s\n", path)
	}

	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
		for _, op := range h.Ops {
			switch op.Type {
			case Equal:
				writeDiffLine(&b, ' ', op.Line)
			case Delete:
				writeDiffLine(&b, '-', op.Line)
			case Insert:
				writeDiffLine(&b, '+', op.Line)
			}
		}
	}

	return b.String()
}

func writeDiffLine(b *strings.Builder, prefix byte, line string) {
	b.WriteByte(prefix)
	b.WriteString(line)
	if !strings.HasSuffix(line, "\n") {
		b.WriteByte('\n')
		b.WriteString(noNewlineMarker)
	}
}

// isBinary reports whether data contains a NUL byte within the leading
// window.
func isBinary(data []byte) bool {
	window := data
	if len(window) > binaryCheckWindow {
		window = window[:binaryCheckWindow]
	}
	return bytes.IndexByte(window, 0) >= 0
}

// splitLines splits data after each newline; the terminator stays attached,
// and the final line may lack one.
func splitLines(data []byte) []string {
	var lines []string
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, string(data))
			break
		}
		lines = append(lines, string(data[:i+1]))
		data = data[i+1:]
	}
	return lines
}
