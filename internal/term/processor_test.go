package term

import "testing"

func newProc(rows, cols int) (*Processor, *Grid) {
	g := NewGrid(rows, cols)
	return NewProcessor(g), g
}

func TestUTF8Idempotence(t *testing.T) {
	s := "héllo 中文 \U0001F600" // accented + CJK + emoji

	p1, g1 := newProc(5, 40)
	p1.Process([]byte(s))

	p2, g2 := newProc(5, 40)
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		p2.Process(b[i : i+1])
	}

	if g1.GetRowText(0) != g2.GetRowText(0) {
		t.Fatalf("split feed diverged: %q vs %q", g1.GetRowText(0), g2.GetRowText(0))
	}
}

func TestUTF8SplitAcrossReadsTwoByteSequence(t *testing.T) {
	// U+041F 'П' is 0xD0 0x9F in UTF-8; 0x9F alone must not be treated as CSI.
	p, g := newProc(3, 10)
	p.Process([]byte{0xD0})
	p.Process([]byte{0x9F})

	row := []rune(g.GetRowText(0))
	if row[0] != 0x041F {
		t.Fatalf("expected U+041F at origin, got %U", row[0])
	}
}

func TestSGRResettability(t *testing.T) {
	p, g := newProc(2, 40)
	p.Process([]byte("\x1b[31mred\x1b[1mbold\x1b[0m"))
	if !g.CurrentStyle().IsDefault() {
		t.Fatalf("expected default style after SGR 0, got %+v", g.CurrentStyle())
	}
}

func TestSGRColorAndBoldSegments(t *testing.T) {
	p, g := newProc(1, 40)
	p.Process([]byte("\x1b[31mred\x1b[0m\x1b[1mbold"))

	segs := g.GetRowSegments(0, true)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Text != "red" || segs[0].Style.Fg == nil || segs[0].Style.Fg.Kind != ColorStandard || segs[0].Style.Fg.Value != 1 {
		t.Fatalf("unexpected first segment: %+v", segs[0])
	}
	if segs[1].Text != "bold" || !segs[1].Style.Bold {
		t.Fatalf("unexpected second segment: %+v", segs[1])
	}
}

func TestEnterAndLeaveInteractiveMode(t *testing.T) {
	p, g := newProc(24, 80)

	events := p.Process([]byte("\x1b[?1049h"))
	if len(events) != 1 || events[0].Kind != EventInteractiveModeChanged || !events[0].Entered {
		t.Fatalf("expected entered interactive mode event, got %+v", events)
	}
	if !p.IsInteractive() {
		t.Fatal("expected IsInteractive true")
	}

	p.Process([]byte("hello"))
	row, col := g.CursorPos()
	if row != 0 || col != 5 {
		t.Fatalf("expected cursor at (0,5), got (%d,%d)", row, col)
	}

	events = p.Process([]byte("\x1b[?1049l"))
	if len(events) != 1 || events[0].Kind != EventInteractiveModeChanged || events[0].Entered {
		t.Fatalf("expected exited interactive mode event, got %+v", events)
	}
	if p.IsInteractive() {
		t.Fatal("expected IsInteractive false")
	}
}

func TestCursorBoundsAfterMovesAndResize(t *testing.T) {
	p, g := newProc(5, 5)
	p.Process([]byte("\x1b[100;100H"))
	row, col := g.CursorPos()
	if row < 0 || row >= g.Rows() || col < 0 || col >= g.Cols() {
		t.Fatalf("cursor out of bounds: (%d,%d)", row, col)
	}
	g.Resize(3, 3)
	row, col = g.CursorPos()
	if row < 0 || row >= g.Rows() || col < 0 || col >= g.Cols() {
		t.Fatalf("cursor out of bounds after resize: (%d,%d)", row, col)
	}
}

func TestBellEvent(t *testing.T) {
	p, _ := newProc(1, 10)
	events := p.Process([]byte{0x07})
	if len(events) != 1 || events[0].Kind != EventBell {
		t.Fatalf("expected bell event, got %+v", events)
	}
}

func TestTitleChanged(t *testing.T) {
	p, _ := newProc(1, 10)
	events := p.Process([]byte("\x1b]2;my title\x07"))
	if len(events) != 1 || events[0].Kind != EventTitleChanged || events[0].Title != "my title" {
		t.Fatalf("expected title event, got %+v", events)
	}
}
