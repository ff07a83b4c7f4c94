package term

// ClearMode selects which portion of a line or screen a clear operation affects.
type ClearMode int

const (
	ClearToEnd ClearMode = iota
	ClearToStart
	ClearEntire
)

// Grid is the styled-cell grid (component A): a fixed rows x columns buffer
// of Cells in row-major storage, plus the cursor, the style new characters
// are written with, dirty-row tracking, and the scroll-off capture list.
//
// A Grid is not safe for concurrent use; callers (the ANSI processor and its
// owning session) serialize access themselves, matching the single-threaded
// server-loop model.
type Grid struct {
	rows, cols int
	cells      []Cell // len == rows*cols, row-major

	cursorRow, cursorCol int
	cursorDirty          bool

	current TextStyle

	dirtyRows map[int]struct{}

	scrolledOff [][]StyledSegment
}

// NewGrid constructs a blank grid of the given dimensions.
func NewGrid(rows, cols int) *Grid {
	g := &Grid{
		rows:      rows,
		cols:      cols,
		cells:     make([]Cell, rows*cols),
		dirtyRows: make(map[int]struct{}),
	}
	for i := range g.cells {
		g.cells[i] = blankCell
	}
	return g
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

func (g *Grid) index(row, col int) int { return row*g.cols + col }

func (g *Grid) clampCursor() {
	if g.cursorRow < 0 {
		g.cursorRow = 0
	}
	if g.cursorRow >= g.rows {
		g.cursorRow = g.rows - 1
	}
	if g.cursorCol < 0 {
		g.cursorCol = 0
	}
	if g.cursorCol >= g.cols {
		g.cursorCol = g.cols - 1
	}
}

// CursorPos returns the current cursor row and column.
func (g *Grid) CursorPos() (row, col int) { return g.cursorRow, g.cursorCol }

// SetCurrentStyle sets the style applied to subsequently written characters.
func (g *Grid) SetCurrentStyle(s TextStyle) { g.current = s }

// CurrentStyle returns the style that will be applied to the next write.
func (g *Grid) CurrentStyle() TextStyle { return g.current }

// ResetStyle returns the current style to TextStyle's zero value.
func (g *Grid) ResetStyle() { g.current = DefaultStyle }

// markRowDirty records that row's contents changed since the last ClearDirtyRows.
func (g *Grid) markRowDirty(row int) {
	if row < 0 || row >= g.rows {
		return
	}
	g.dirtyRows[row] = struct{}{}
}

// moveCursorTo sets the cursor position directly, clamping to bounds, and
// marks it dirty. Used by absolute-position operations (CUP, CHA, VPA, ...).
func (g *Grid) moveCursorTo(row, col int) {
	g.cursorRow, g.cursorCol = row, col
	g.clampCursor()
	g.cursorDirty = true
}

// MoveCursor is the exported absolute-move entry point (component A's moveCursor).
func (g *Grid) MoveCursor(row, col int) { g.moveCursorTo(row, col) }

// MoveCursorRelative moves the cursor by (dr, dc); negative relative moves
// saturate at 0 rather than wrapping, per the grid invariants.
func (g *Grid) MoveCursorRelative(dr, dc int) {
	g.moveCursorTo(g.cursorRow+dr, g.cursorCol+dc)
}

// CarriageReturn moves the cursor to column 0 of the current row.
func (g *Grid) CarriageReturn() { g.moveCursorTo(g.cursorRow, 0) }

// LineFeed advances the cursor to the next row, scrolling the grid up by one
// when already on the last row.
func (g *Grid) LineFeed() {
	if g.cursorRow+1 < g.rows {
		g.moveCursorTo(g.cursorRow+1, g.cursorCol)
		return
	}
	g.Scroll(1)
}

// PutCharacter writes ch at the cursor using the current style, then
// advances the cursor by one column (wrapping to the next row via the
// line-feed rule when it runs past the last column). Wide runes (CJK,
// emoji) consume the following column as a non-rendered spacer, per the
// wide-character handling a full-width-aware terminal needs even though the
// base data model only names (char, style); see SPEC_FULL.md.
func (g *Grid) PutCharacter(ch rune) { g.PutCharacterStyled(ch, g.current) }

// PutCharacterStyled writes ch with an explicit style, leaving CurrentStyle untouched.
func (g *Grid) PutCharacterStyled(ch rune, style TextStyle) {
	wide := isWideRune(ch)
	if wide && g.cursorCol+1 >= g.cols {
		// Not enough room for a wide rune in the remaining columns: wrap first.
		g.wrapForWrite()
	}

	idx := g.index(g.cursorRow, g.cursorCol)
	g.cells[idx] = Cell{Char: ch, Style: style, Wide: wide}
	g.markRowDirty(g.cursorRow)

	if wide {
		g.cells[g.index(g.cursorRow, g.cursorCol+1)] = Cell{Char: 0, Style: style, Spacer: true}
	}

	advance := 1
	if wide {
		advance = 2
	}
	g.cursorCol += advance
	if g.cursorCol >= g.cols {
		g.wrapForWrite()
	}
	g.cursorDirty = true
}

// wrapForWrite implements the wrap-then-lineFeed rule: column resets to 0
// and the lineFeed rule runs (advance row, or scroll on the last row).
func (g *Grid) wrapForWrite() {
	g.cursorCol = 0
	if g.cursorRow+1 < g.rows {
		g.cursorRow++
	} else {
		g.Scroll(1)
	}
}

// ClearLine blanks part or all of the cursor's row.
func (g *Grid) ClearLine(mode ClearMode) {
	start, end := 0, g.cols
	switch mode {
	case ClearToEnd:
		start = g.cursorCol
	case ClearToStart:
		end = g.cursorCol + 1
	case ClearEntire:
	}
	g.blankRange(g.cursorRow, start, end)
	g.markRowDirty(g.cursorRow)
}

// ClearScreen blanks part or all of the screen.
func (g *Grid) ClearScreen(mode ClearMode) {
	switch mode {
	case ClearToEnd:
		g.blankRange(g.cursorRow, g.cursorCol, g.cols)
		g.markRowDirty(g.cursorRow)
		for r := g.cursorRow + 1; r < g.rows; r++ {
			g.blankRange(r, 0, g.cols)
			g.markRowDirty(r)
		}
	case ClearToStart:
		g.blankRange(g.cursorRow, 0, g.cursorCol+1)
		g.markRowDirty(g.cursorRow)
		for r := 0; r < g.cursorRow; r++ {
			g.blankRange(r, 0, g.cols)
			g.markRowDirty(r)
		}
	case ClearEntire:
		for r := 0; r < g.rows; r++ {
			g.blankRange(r, 0, g.cols)
			g.markRowDirty(r)
		}
	}
}

func (g *Grid) blankRange(row, start, end int) {
	for c := start; c < end && c < g.cols; c++ {
		g.cells[g.index(row, c)] = blankCell
	}
}

// Scroll shifts the grid vertically. Positive n scrolls up (moves content
// toward row 0): the top n rows are captured to the scroll-off list, the
// remaining rows shift up, and the bottom n rows become blank. Negative n
// scrolls down: rows shift down, the top |n| rows become blank, and nothing
// is captured.
func (g *Grid) Scroll(n int) {
	if n == 0 {
		return
	}
	if n > 0 {
		if n > g.rows {
			n = g.rows
		}
		for r := 0; r < n; r++ {
			row := g.rowCells(r)
			captured := make([]Cell, len(row))
			copy(captured, row)
			g.scrolledOff = append(g.scrolledOff, segmentsFromCells(captured, true))
		}
		copy(g.cells, g.cells[n*g.cols:])
		for r := g.rows - n; r < g.rows; r++ {
			g.blankRange(r, 0, g.cols)
		}
	} else {
		n = -n
		if n > g.rows {
			n = g.rows
		}
		copy(g.cells[n*g.cols:], g.cells[:(g.rows-n)*g.cols])
		for r := 0; r < n; r++ {
			g.blankRange(r, 0, g.cols)
		}
	}
	for r := 0; r < g.rows; r++ {
		g.markRowDirty(r)
	}
}

// Resize changes the grid dimensions, preserving the overlapping region and
// filling the remainder with blank cells. The cursor is clamped into the new bounds.
func (g *Grid) Resize(rows, cols int) {
	if rows == g.rows && cols == g.cols {
		return
	}
	next := make([]Cell, rows*cols)
	for i := range next {
		next[i] = blankCell
	}
	copyRows := min(rows, g.rows)
	copyCols := min(cols, g.cols)
	for r := 0; r < copyRows; r++ {
		copy(next[r*cols:r*cols+copyCols], g.cells[r*g.cols:r*g.cols+copyCols])
	}
	g.rows, g.cols, g.cells = rows, cols, next
	g.clampCursor()
	g.MarkAllDirty()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// CellAt returns the cell at (row, col), or nil if out of bounds.
func (g *Grid) CellAt(row, col int) *Cell {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return nil
	}
	return &g.cells[g.index(row, col)]
}

func (g *Grid) rowCells(row int) []Cell {
	return g.cells[row*g.cols : (row+1)*g.cols]
}

// GetRowText returns the row rendered as plain text (no style, no trailing trim).
func (g *Grid) GetRowText(row int) string {
	if row < 0 || row >= g.rows {
		return ""
	}
	return textFromCells(g.rowCells(row))
}

// GetRowSegments groups the row into styled runs, trimming a trailing
// default-styled blank run when trimTrailing is true.
func (g *Grid) GetRowSegments(row int, trimTrailing bool) []StyledSegment {
	if row < 0 || row >= g.rows {
		return nil
	}
	return segmentsFromCells(g.rowCells(row), trimTrailing)
}

// DirtyRows returns the indices of rows mutated since the last ClearDirtyRows, in ascending order.
func (g *Grid) DirtyRows() []int {
	if len(g.dirtyRows) == 0 {
		return nil
	}
	rows := make([]int, 0, len(g.dirtyRows))
	for r := range g.dirtyRows {
		rows = append(rows, r)
	}
	// Small sets (a terminal has at most a few hundred rows): insertion sort is fine.
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j-1] > rows[j]; j-- {
			rows[j-1], rows[j] = rows[j], rows[j-1]
		}
	}
	return rows
}

// IsCursorDirty reports whether the cursor moved since the last ClearDirtyRows.
func (g *Grid) IsCursorDirty() bool { return g.cursorDirty }

// ClearDirtyRows empties the dirty-row set and clears the cursor-dirty flag.
func (g *Grid) ClearDirtyRows() {
	g.dirtyRows = make(map[int]struct{})
	g.cursorDirty = false
}

// MarkAllDirty marks every row dirty and the cursor dirty, used after a
// resize or full-screen redraw (e.g. entering interactive mode).
func (g *Grid) MarkAllDirty() {
	for r := 0; r < g.rows; r++ {
		g.dirtyRows[r] = struct{}{}
	}
	g.cursorDirty = true
}

// TakeScrolledOffRows drains and returns the rows evicted by upward scrolls
// since the last call. Reserved for late-joining interactive-mode clients;
// the mediator does not currently consume it (see SPEC_FULL.md design notes).
func (g *Grid) TakeScrolledOffRows() [][]StyledSegment {
	rows := g.scrolledOff
	g.scrolledOff = nil
	return rows
}
