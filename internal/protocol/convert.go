package protocol

import (
	"encoding/json"

	"github.com/fnc12/termihui-sub000/internal/term"
)

// SegmentsToWire converts term.StyledSegment values into their wire form.
// Color fields rely on term.Color's own MarshalJSON for the tagged-union shape.
func SegmentsToWire(segments []term.StyledSegment) []StyledSegmentWire {
	wire := make([]StyledSegmentWire, len(segments))
	for i, seg := range segments {
		wire[i] = StyledSegmentWire{
			Text:  seg.Text,
			Style: styleToWire(seg.Style),
		}
	}
	return wire
}

func styleToWire(style term.TextStyle) StyleWire {
	w := StyleWire{
		Bold:          style.Bold,
		Dim:           style.Dim,
		Italic:        style.Italic,
		Underline:     style.Underline,
		Reverse:       style.Reverse,
		Strikethrough: style.Strikethrough,
	}
	if style.Fg != nil {
		w.Fg, _ = json.Marshal(style.Fg)
	}
	if style.Bg != nil {
		w.Bg, _ = json.Marshal(style.Bg)
	}
	return w
}

// LinesToWire converts a grid snapshot (one []term.StyledSegment per row)
// into the wire form used by screenSnapshot.lines.
func LinesToWire(lines [][]term.StyledSegment) [][]StyledSegmentWire {
	wire := make([][]StyledSegmentWire, len(lines))
	for i, line := range lines {
		wire[i] = SegmentsToWire(line)
	}
	return wire
}
