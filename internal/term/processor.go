package term

import "strconv"

// EventKind identifies the side-band events Process can emit.
type EventKind int

const (
	EventInteractiveModeChanged EventKind = iota
	EventTitleChanged
	EventBell
)

// Event is one side-band notification produced by a Process call. Only the
// field relevant to Kind is populated.
type Event struct {
	Kind    EventKind
	Entered bool   // EventInteractiveModeChanged
	Title   string // EventTitleChanged
}

type parserState int

const (
	stateNormal parserState = iota
	stateEscape
	stateCSI
	stateOSC
)

// Processor is the ANSI/VT byte-stream state machine (component B): it
// decodes UTF-8 incrementally, interprets CSI/SGR/OSC/escape sequences
// against one Grid, and returns side-band events. A Processor is owned by
// exactly one session and is driven single-threaded, like the Grid it wraps.
type Processor struct {
	grid *Grid

	state   parserState
	csiBuf  []byte
	oscBuf  []byte
	utf8Buf []byte // incomplete leading UTF-8 sequence carried across Process calls

	interactive bool
}

// NewProcessor attaches a processor to grid.
func NewProcessor(grid *Grid) *Processor {
	return &Processor{grid: grid}
}

// IsInteractive reports whether the terminal is currently in the alternate
// (full-screen TUI) screen per the most recent DECSET/DECRST 47/1047/1049.
func (p *Processor) IsInteractive() bool { return p.interactive }

// Process consumes bytes against the current parser state and returns the
// events produced, in order.
func (p *Processor) Process(data []byte) []Event {
	var events []Event
	emit := func(e Event) { events = append(events, e) }

	i := 0
	if len(p.utf8Buf) > 0 {
		data = append(p.utf8Buf, data...)
		p.utf8Buf = nil
	}

	for i < len(data) {
		b := data[i]

		switch p.state {
		case stateNormal:
			if b >= 0x80 {
				consumed, ok := p.decodeUTF8(data[i:])
				if ok {
					i += consumed
					continue
				}
				if consumed == -1 {
					// Incomplete tail at end of input: retain for next call.
					p.utf8Buf = append(p.utf8Buf, data[i:]...)
					i = len(data)
					continue
				}
				// Invalid continuation: reprocess current byte as Normal (dropped below).
				i++
				continue
			}
			p.normalByte(b, emit)
			i++

		case stateEscape:
			p.escapeByte(b, emit)
			i++

		case stateCSI:
			if b >= 0x20 && b <= 0x3F {
				p.csiBuf = append(p.csiBuf, b)
				i++
				continue
			}
			if b >= 0x40 && b <= 0x7E {
				p.dispatchCSI(b, emit)
				p.state = stateNormal
				i++
				continue
			}
			// Out-of-grammar byte: abort back to Normal without consuming as text.
			p.state = stateNormal
			i++

		case stateOSC:
			if b == 0x07 {
				p.dispatchOSC(emit)
				p.state = stateNormal
				i++
				continue
			}
			if b == 0x1B && i+1 < len(data) && data[i+1] == '\\' {
				p.dispatchOSC(emit)
				p.state = stateNormal
				i += 2
				continue
			}
			if b == 0x1B && i+1 == len(data) {
				// ST may be split across reads; keep it simple per spec's no-cross-read-buffering
				// policy for markers and just treat ESC here as the terminator attempt failing open.
				p.oscBuf = append(p.oscBuf, b)
				i++
				continue
			}
			p.oscBuf = append(p.oscBuf, b)
			i++
		}
	}

	return events
}

// decodeUTF8 attempts to decode one scalar starting at buf[0] (buf[0] >= 0x80).
// Returns (bytesConsumed, true) on success after writing the rune, (-1, false)
// if buf is an incomplete-but-valid-so-far sequence (retain and retry later),
// or (0, false) if invalid (caller drops the single leading byte).
func (p *Processor) decodeUTF8(buf []byte) (int, bool) {
	b0 := buf[0]
	var need int
	switch {
	case b0&0xE0 == 0xC0:
		need = 2
	case b0&0xF0 == 0xE0:
		need = 3
	case b0&0xF8 == 0xF0:
		need = 4
	default:
		return 0, false
	}
	if len(buf) < need {
		for _, c := range buf[1:] {
			if c&0xC0 != 0x80 {
				return 0, false
			}
		}
		return -1, false
	}
	r := rune(b0 & (0xFF >> (need + 1)))
	for k := 1; k < need; k++ {
		c := buf[k]
		if c&0xC0 != 0x80 {
			return 0, false
		}
		r = r<<6 | rune(c&0x3F)
	}
	p.grid.PutCharacter(r)
	return need, true
}

func (p *Processor) normalByte(b byte, emit func(Event)) {
	switch b {
	case 0x0D:
		p.grid.CarriageReturn()
	case 0x0A:
		p.grid.LineFeed()
	case 0x09:
		_, col := p.grid.CursorPos()
		next := ((col / 8) + 1) * 8
		if next >= p.grid.Cols() {
			next = p.grid.Cols() - 1
		}
		row, _ := p.grid.CursorPos()
		p.grid.MoveCursor(row, next)
	case 0x08:
		row, col := p.grid.CursorPos()
		if col > 0 {
			p.grid.MoveCursor(row, col-1)
		}
	case 0x07:
		emit(Event{Kind: EventBell})
	case 0x1B:
		p.state = stateEscape
	default:
		if b >= 0x20 && b <= 0x7E {
			p.grid.PutCharacter(rune(b))
		}
		// Other C0 bytes are ignored.
	}
}

func (p *Processor) escapeByte(b byte, emit func(Event)) {
	switch b {
	case '[':
		p.csiBuf = p.csiBuf[:0]
		p.state = stateCSI
	case ']':
		p.oscBuf = p.oscBuf[:0]
		p.state = stateOSC
	case '\\':
		p.state = stateNormal
	case 'c':
		p.grid.ClearScreen(ClearEntire)
		p.grid.MoveCursor(0, 0)
		p.grid.ResetStyle()
		p.state = stateNormal
	case 'D':
		p.grid.LineFeed()
		p.state = stateNormal
	case 'E':
		p.grid.CarriageReturn()
		p.grid.LineFeed()
		p.state = stateNormal
	case 'M':
		row, _ := p.grid.CursorPos()
		if row > 0 {
			p.grid.MoveCursorRelative(-1, 0)
		} else {
			p.grid.Scroll(-1)
		}
		p.state = stateNormal
	case '7', '8':
		p.state = stateNormal
	default:
		p.state = stateNormal
	}
}

// csiParams parses the accumulated parameter bytes into a semicolon-separated
// decimal list, a private-mode flag, and the leading '?' stripped.
func (p *Processor) csiParams() (params []int, private bool) {
	buf := p.csiBuf
	if len(buf) > 0 && buf[0] == '?' {
		private = true
		buf = buf[1:]
	}
	start := 0
	for idx := 0; idx <= len(buf); idx++ {
		if idx == len(buf) || buf[idx] == ';' {
			tok := string(buf[start:idx])
			if tok == "" {
				params = append(params, 0)
			} else if n, err := strconv.Atoi(tok); err == nil {
				params = append(params, n)
			} else {
				params = append(params, 0)
			}
			start = idx + 1
		}
	}
	return params, private
}

func paramOr(params []int, idx, def int) int {
	if idx >= len(params) {
		return def
	}
	if params[idx] == 0 {
		return def
	}
	return params[idx]
}

func (p *Processor) dispatchCSI(final byte, emit func(Event)) {
	params, private := p.csiParams()
	row, col := p.grid.CursorPos()

	switch final {
	case 'A':
		p.grid.MoveCursorRelative(-paramOr(params, 0, 1), 0)
	case 'B':
		p.grid.MoveCursorRelative(paramOr(params, 0, 1), 0)
	case 'C':
		p.grid.MoveCursorRelative(0, paramOr(params, 0, 1))
	case 'D':
		p.grid.MoveCursorRelative(0, -paramOr(params, 0, 1))
	case 'E':
		p.grid.MoveCursorRelative(paramOr(params, 0, 1), 0)
		p.grid.CarriageReturn()
	case 'F':
		p.grid.MoveCursorRelative(-paramOr(params, 0, 1), 0)
		p.grid.CarriageReturn()
	case 'G':
		p.grid.MoveCursor(row, paramOr(params, 0, 1)-1)
	case 'd':
		p.grid.MoveCursor(paramOr(params, 0, 1)-1, col)
	case 'H', 'f':
		p.grid.MoveCursor(paramOr(params, 0, 1)-1, paramOr(params, 1, 1)-1)
	case 'J':
		p.grid.ClearScreen(edMode(paramOr(params, 0, 0)))
	case 'K':
		p.grid.ClearLine(elMode(paramOr(params, 0, 0)))
	case 'S':
		p.grid.Scroll(paramOr(params, 0, 1))
	case 'T':
		p.grid.Scroll(-paramOr(params, 0, 1))
	case 'm':
		p.grid.SetCurrentStyle(ApplySGR(p.grid.CurrentStyle(), params))
	case 'r', 's', 'u':
		// Accepted and ignored.
	case 'h', 'l':
		if private {
			p.dispatchPrivateMode(params, final == 'h', emit)
		}
	}
}

func edMode(n int) ClearMode {
	switch n {
	case 1:
		return ClearToStart
	case 2, 3:
		return ClearEntire
	default:
		return ClearToEnd
	}
}

func elMode(n int) ClearMode {
	switch n {
	case 1:
		return ClearToStart
	case 2:
		return ClearEntire
	default:
		return ClearToEnd
	}
}

// dispatchPrivateMode handles CSI ? Pm h/l. Only 47/1047/1049 (alternate
// screen) are meaningful; 25/7/12 are accepted and ignored per spec.
func (p *Processor) dispatchPrivateMode(params []int, set bool, emit func(Event)) {
	for _, mode := range params {
		switch mode {
		case 47, 1047, 1049:
			if set == p.interactive {
				continue
			}
			p.interactive = set
			if set {
				p.grid.ClearScreen(ClearEntire)
				p.grid.MoveCursor(0, 0)
				emit(Event{Kind: EventInteractiveModeChanged, Entered: true})
			} else {
				emit(Event{Kind: EventInteractiveModeChanged, Entered: false})
			}
		case 25, 7, 12:
			// Accepted and ignored.
		}
	}
}

// ApplySGR applies one Select Graphic Rendition parameter list to style and
// returns the result. An empty list is treated as [0]. It touches no grid,
// so it also backs the grid-free OutputParser used outside the main
// processor to style interstitial command output (see shellmarker.OutputParser).
func ApplySGR(style TextStyle, params []int) TextStyle {
	if len(params) == 0 {
		params = []int{0}
	}

	for i := 0; i < len(params); i++ {
		n := params[i]
		switch {
		case n == 0:
			style.Reset()
		case n == 1:
			style.Bold = true
		case n == 2:
			style.Dim = true
		case n == 3:
			style.Italic = true
		case n == 4:
			style.Underline = true
		case n == 5 || n == 6:
			style.Blink = true
		case n == 7:
			style.Reverse = true
		case n == 8:
			style.Hidden = true
		case n == 9:
			style.Strikethrough = true
		case n == 22:
			style.Bold, style.Dim = false, false
		case n == 23:
			style.Italic = false
		case n == 24:
			style.Underline = false
		case n == 25:
			style.Blink = false
		case n == 27:
			style.Reverse = false
		case n == 28:
			style.Hidden = false
		case n == 29:
			style.Strikethrough = false
		case n >= 30 && n <= 37:
			c := StandardColor(uint8(n - 30))
			style.Fg = &c
		case n == 39:
			style.Fg = nil
		case n >= 40 && n <= 47:
			c := StandardColor(uint8(n - 40))
			style.Bg = &c
		case n == 49:
			style.Bg = nil
		case n >= 90 && n <= 97:
			c := BrightColor(uint8(n - 90))
			style.Fg = &c
		case n >= 100 && n <= 107:
			c := BrightColor(uint8(n - 100))
			style.Bg = &c
		case n == 38 || n == 48:
			consumed, color := parseExtendedColor(params[i+1:])
			i += consumed
			if color != nil {
				if n == 38 {
					style.Fg = color
				} else {
					style.Bg = color
				}
			}
		}
	}

	return style
}

// parseExtendedColor parses the tail of a 38/48 extended-color SGR sequence
// (rest starts just after the 38 or 48). Returns how many further parameters
// were consumed and the resolved color. A malformed or truncated sequence
// yields a nil color, leaving the color unchanged: an empty tail consumes
// nothing, a 5 with no index or an unknown selector consumes just the
// selector, and a 2 with fewer than three components consumes the rest.
func parseExtendedColor(rest []int) (consumed int, color *Color) {
	if len(rest) == 0 {
		return 0, nil
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return 1, nil
		}
		idx := rest[1]
		var c Color
		switch {
		case idx < 8:
			c = StandardColor(uint8(idx))
		case idx < 16:
			c = BrightColor(uint8(idx - 8))
		default:
			c = IndexedColor(uint8(idx))
		}
		return 2, &c
	case 2:
		if len(rest) < 4 {
			return len(rest), nil
		}
		c := RGBColor(uint8(rest[1]), uint8(rest[2]), uint8(rest[3]))
		return 4, &c
	default:
		return 1, nil
	}
}

// dispatchOSC handles the accumulated OSC payload ("Ps;Pt") on terminator.
// Only 0/1/2 (title) are meaningful here; 7 (cwd) and 133 (shell-integration
// markers) are left for the shell marker parser to see in the raw byte
// stream — component B only needs to recognize and discard them.
func (p *Processor) dispatchOSC(emit func(Event)) {
	payload := string(p.oscBuf)
	ps, pt, ok := splitOSC(payload)
	if !ok {
		return
	}
	switch ps {
	case "0", "1", "2":
		emit(Event{Kind: EventTitleChanged, Title: pt})
	}
}

// splitOSC splits "Ps;Pt" into its two parts.
func splitOSC(payload string) (ps, pt string, ok bool) {
	for i := 0; i < len(payload); i++ {
		if payload[i] == ';' {
			return payload[:i], payload[i+1:], true
		}
	}
	return payload, "", payload != ""
}
