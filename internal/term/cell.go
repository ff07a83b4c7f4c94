package term

// Cell is a single grid position: a Unicode scalar value plus the style it
// was written with. A blank cell is (' ', DefaultStyle). Wide characters
// (CJK, emoji) occupy two columns; the second column holds a spacer cell
// with Spacer set and Char == 0.
type Cell struct {
	Char   rune
	Style  TextStyle
	Wide   bool // this cell starts a two-column-wide rune
	Spacer bool // this cell is the second, non-rendered column of a wide rune
}

// blankCell is the value every grid position holds on construction, resize
// fill, and clear.
var blankCell = Cell{Char: ' '}

// Reset restores the cell to blank.
func (c *Cell) Reset() { *c = blankCell }

// IsBlank reports whether the cell is a default-styled space, used when
// trimming trailing segments.
func (c Cell) IsBlank() bool { return c.Char == ' ' && c.Style.IsDefault() && !c.Wide && !c.Spacer }
