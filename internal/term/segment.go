package term

// StyledSegment is a run of text sharing one TextStyle: the wire-protocol
// unit for rows and command output, and the compact in-memory row
// representation used for replay storage.
type StyledSegment struct {
	Text  string    `json:"text"`
	Style TextStyle `json:"style"`
}

// segmentsFromCells groups adjacent cells with equal styles into runs. When
// trimTrailing is true, a trailing run of default-styled blank cells is
// dropped, matching getRowSegments's documented behavior.
func segmentsFromCells(cells []Cell, trimTrailing bool) []StyledSegment {
	end := len(cells)
	if trimTrailing {
		for end > 0 && cells[end-1].IsBlank() {
			end--
		}
	}

	var segments []StyledSegment
	var cur *StyledSegment
	var runeBuf []rune

	flush := func() {
		if cur != nil && len(runeBuf) > 0 {
			cur.Text = string(runeBuf)
			segments = append(segments, *cur)
		}
	}

	for i := 0; i < end; i++ {
		cell := cells[i]
		if cell.Spacer {
			continue
		}
		if cur == nil || !cur.Style.Equal(cell.Style) {
			flush()
			cur = &StyledSegment{Style: cell.Style}
			runeBuf = runeBuf[:0]
		}
		runeBuf = append(runeBuf, cell.Char)
	}
	flush()

	return segments
}

// textFromCells renders cells as plain text, skipping wide-char spacers.
func textFromCells(cells []Cell) string {
	runes := make([]rune, 0, len(cells))
	for _, cell := range cells {
		if cell.Spacer {
			continue
		}
		runes = append(runes, cell.Char)
	}
	return string(runes)
}
