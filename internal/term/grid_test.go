package term

import "testing"

func TestNewGrid(t *testing.T) {
	g := NewGrid(24, 80)
	if g.Rows() != 24 || g.Cols() != 80 {
		t.Fatalf("expected 24x80, got %dx%d", g.Rows(), g.Cols())
	}
	row, col := g.CursorPos()
	if row != 0 || col != 0 {
		t.Fatalf("expected cursor at origin, got (%d,%d)", row, col)
	}
}

func TestPutCharacterAdvancesAndWraps(t *testing.T) {
	g := NewGrid(2, 3)
	g.PutCharacter('a')
	g.PutCharacter('b')
	g.PutCharacter('c')
	row, col := g.CursorPos()
	if row != 1 || col != 0 {
		t.Fatalf("expected wrap to (1,0), got (%d,%d)", row, col)
	}
	if g.GetRowText(0) != "abc" {
		t.Fatalf("expected row 0 'abc', got %q", g.GetRowText(0))
	}
}

func TestScrollUpCapturesRowsAndBlanksBottom(t *testing.T) {
	g := NewGrid(2, 3)
	g.PutCharacter('a')
	g.CarriageReturn()
	g.LineFeed()
	g.PutCharacter('b')

	g.Scroll(1)

	captured := g.TakeScrolledOffRows()
	if len(captured) != 1 {
		t.Fatalf("expected 1 captured row, got %d", len(captured))
	}
	if g.GetRowText(1) != "   " {
		t.Fatalf("expected bottom row blank, got %q", g.GetRowText(1))
	}
}

func TestCursorStaysInBoundsAfterRelativeMoves(t *testing.T) {
	g := NewGrid(5, 5)
	g.MoveCursorRelative(-10, -10)
	row, col := g.CursorPos()
	if row != 0 || col != 0 {
		t.Fatalf("expected clamp to origin, got (%d,%d)", row, col)
	}
	g.MoveCursorRelative(100, 100)
	row, col = g.CursorPos()
	if row != 4 || col != 4 {
		t.Fatalf("expected clamp to (4,4), got (%d,%d)", row, col)
	}
}

func TestResizePreservesOverlapAndFillsBlank(t *testing.T) {
	g := NewGrid(2, 2)
	g.PutCharacter('x')
	g.Resize(3, 3)
	if g.Rows() != 3 || g.Cols() != 3 {
		t.Fatalf("expected 3x3, got %dx%d", g.Rows(), g.Cols())
	}
	if g.GetRowText(0) != "x  " {
		t.Fatalf("expected overlap preserved, got %q", g.GetRowText(0))
	}
	if g.GetRowText(2) != "   " {
		t.Fatalf("expected new row blank, got %q", g.GetRowText(2))
	}
}

func TestGetRowSegmentsTrimsTrailingDefault(t *testing.T) {
	g := NewGrid(1, 10)
	bold := DefaultStyle
	bold.Bold = true
	g.SetCurrentStyle(bold)
	g.PutCharacter('h')
	g.PutCharacter('i')
	g.ResetStyle()

	segments := g.GetRowSegments(0, true)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment after trimming, got %d: %+v", len(segments), segments)
	}
	if segments[0].Text != "hi" || !segments[0].Style.Bold {
		t.Fatalf("unexpected segment: %+v", segments[0])
	}
}

func TestDirtyRowsTracking(t *testing.T) {
	g := NewGrid(3, 3)
	if len(g.DirtyRows()) != 0 {
		t.Fatal("expected no dirty rows on a fresh grid")
	}
	g.PutCharacter('a')
	rows := g.DirtyRows()
	if len(rows) != 1 || rows[0] != 0 {
		t.Fatalf("expected row 0 dirty, got %v", rows)
	}
	g.ClearDirtyRows()
	if len(g.DirtyRows()) != 0 || g.IsCursorDirty() {
		t.Fatal("expected dirty state cleared")
	}
}
