// Package shellmarker implements the shell marker parser (component C): it
// scans raw PTY bytes for OSC 133/2/7 markers to segment block-mode output
// into CommandRecords, and it hosts the grid-free OutputParser that styles
// the interstitial text between markers without touching any grid.
package shellmarker

import "github.com/fnc12/termihui-sub000/internal/term"

// OutputParser turns a byte run that may contain SGR sequences into
// StyledSegments, without needing a Grid: it tracks only the "current
// style" SGR would otherwise apply to a cursor, and embedded non-SGR CSI
// (cursor movement, erase) is stripped rather than interpreted. It
// persists its current style across Parse
// calls; resetting between calls is only a performance detail, never
// required for correctness (segments are self-contained).
type OutputParser struct {
	current term.TextStyle
	csiBuf  []byte
	inCSI   bool
	inOSC   bool
	oscBuf  []byte
	utf8Buf []byte
}

// Parse consumes data and returns the StyledSegments it represents.
func (p *OutputParser) Parse(data []byte) []term.StyledSegment {
	var segments []term.StyledSegment
	var cur *term.StyledSegment
	var runes []rune

	flush := func() {
		if cur != nil && len(runes) > 0 {
			cur.Text = string(runes)
			segments = append(segments, *cur)
		}
	}
	emit := func(r rune) {
		if cur == nil || !cur.Style.Equal(p.current) {
			flush()
			cur = &term.StyledSegment{Style: p.current}
			runes = runes[:0]
		}
		runes = append(runes, r)
	}

	if len(p.utf8Buf) > 0 {
		data = append(p.utf8Buf, data...)
		p.utf8Buf = nil
	}

	i := 0
	for i < len(data) {
		b := data[i]

		if p.inCSI {
			p.csiBuf = append(p.csiBuf, b)
			if b >= 0x40 && b <= 0x7E {
				if b == 'm' {
					params := parseCSIParams(p.csiBuf[:len(p.csiBuf)-1])
					p.current = term.ApplySGR(p.current, params)
				}
				p.inCSI = false
			}
			i++
			continue
		}
		if p.inOSC {
			if b == 0x07 || (b == 0x1B && i+1 < len(data) && data[i+1] == '\\') {
				p.inOSC = false
				if b == 0x1B {
					i++
				}
			}
			i++
			continue
		}

		if b == 0x1B && i+1 < len(data) && data[i+1] == '[' {
			p.inCSI = true
			p.csiBuf = p.csiBuf[:0]
			i += 2
			continue
		}
		if b == 0x1B && i+1 < len(data) && data[i+1] == ']' {
			p.inOSC = true
			i += 2
			continue
		}
		if b >= 0x80 {
			consumed, r, ok := decodeUTF8(data[i:])
			if ok {
				emit(r)
				i += consumed
				continue
			}
			if consumed == -1 {
				// Incomplete tail at end of input: retain for next call.
				p.utf8Buf = append(p.utf8Buf, data[i:]...)
				i = len(data)
				continue
			}
			// Invalid continuation: drop the single leading byte.
			i++
			continue
		}
		if b == '\n' || b == '\r' || (b >= 0x20 && b < 0x80) {
			emit(rune(b))
		}
		// Other raw bytes (stray C0 controls) are dropped.
		i++
	}
	flush()

	return segments
}

// decodeUTF8 mirrors term.Processor's own scalar decoder: it attempts to
// decode one rune starting at buf[0] (buf[0] >= 0x80), returning
// (bytesConsumed, rune, true) on success, (-1, 0, false) if buf is an
// incomplete-but-valid-so-far sequence to retain and retry on the next
// Parse call, or (0, 0, false) if invalid (caller drops the leading byte).
func decodeUTF8(buf []byte) (int, rune, bool) {
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
		return 0, 0, false
	}
	if len(buf) < need {
		for _, c := range buf[1:] {
			if c&0xC0 != 0x80 {
				return 0, 0, false
			}
		}
		return -1, 0, false
	}
	r := rune(b0 & (0xFF >> (need + 1)))
	for k := 1; k < need; k++ {
		c := buf[k]
		if c&0xC0 != 0x80 {
			return 0, 0, false
		}
		r = r<<6 | rune(c&0x3F)
	}
	return need, r, true
}

func parseCSIParams(buf []byte) []int {
	var params []int
	start := 0
	for idx := 0; idx <= len(buf); idx++ {
		if idx == len(buf) || buf[idx] == ';' {
			n := 0
			for _, c := range buf[start:idx] {
				if c < '0' || c > '9' {
					n = 0
					break
				}
				n = n*10 + int(c-'0')
			}
			params = append(params, n)
			start = idx + 1
		}
	}
	return params
}
