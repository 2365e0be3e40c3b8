package diff

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

// Hunk is one contiguous region of a unified diff: a run of changes plus the
// surrounding context lines.
type Hunk struct {
	OldStart int // 1-based first line on the old side (0 when OldLines is 0)
	OldLines int
	NewStart int // 1-based first line on the new side (0 when NewLines is 0)
	NewLines int
	Ops      []Op
}

// BuildHunks coalesces an edit script into hunks. Changes separated by an
// equal run shorter than 2*context lines fold into the same hunk; each hunk
// carries up to context equal lines on either side. Identical inputs (no
// Insert/Delete ops) yield zero hunks.
func BuildHunks(ops []Op, context int) []Hunk {
	if context < 0 {
		context = DefaultContext
	}

	// Indices of non-equal ops.
	var changes []int
	for i, op := range ops {
		if op.Type != Equal {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	// Group changes whose equal-line gap is below the merge threshold.
	type span struct{ first, last int }
	var groups []span
	cur := span{first: changes[0], last: changes[0]}
	for _, idx := range changes[1:] {
		if idx-cur.last-1 < 2*context {
			cur.last = idx
		} else {
			groups = append(groups, cur)
			cur = span{first: idx, last: idx}
		}
	}
	groups = append(groups, cur)

	hunks := make([]Hunk, 0, len(groups))
	for _, g := range groups {
		start := g.first - context
		if start < 0 {
			start = 0
		}
		end := g.last + context + 1
		if end > len(ops) {
			end = len(ops)
		}

		// Line positions consumed before the hunk starts.
		oldPos, newPos := 0, 0
		for _, op := range ops[:start] {
			switch op.Type {
			case Equal:
				oldPos++
				newPos++
			case Delete:
				oldPos++
			case Insert:
				newPos++
			}
		}

		h := Hunk{Ops: ops[start:end]}
		for _, op := range h.Ops {
			switch op.Type {
			case Equal:
				h.OldLines++
				h.NewLines++
			case Delete:
				h.OldLines++
			case Insert:
				h.NewLines++
			}
		}

		// Unified headers use 1-based starts; a zero count shows the line
		// before the gap instead.
		h.OldStart = oldPos + 1
		if h.OldLines == 0 {
			h.OldStart = oldPos
		}
		h.NewStart = newPos + 1
		if h.NewLines == 0 {
			h.NewStart = newPos
		}

		hunks = append(hunks, h)
	}

	return hunks
}
