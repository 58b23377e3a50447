package tui

// layout holds the panel sizes for one terminal size. The list takes 40%
// of the width and the preview the rest; each panel loses 4 columns to
// borders and padding.
type layout struct {
	listW    int
	previewW int
	panelH   int
}

// header rows: input line and top border
const contentTop = 2

func newLayout(width, height int) layout {
	l := layout{listW: 40, previewW: 60, panelH: 20}
	if width > 0 {
		l.listW = max(width*40/100-4, 20)
		l.previewW = max(width*60/100-4, 20)
	}
	if height > 0 {
		// input row, status bar and borders
		l.panelH = max(height-6, 5)
	}
	return l
}

type mouseRegion int

const (
	regionNone mouseRegion = iota
	regionList
	regionPreview
)

// hitTest maps terminal coordinates to a panel region and, for the list,
// the index of the result under the pointer.
func (l layout) hitTest(x, y, listOffset int) (mouseRegion, int) {
	if y < contentTop || y >= contentTop+l.panelH {
		return regionNone, -1
	}
	switch {
	case x >= 1 && x <= l.listW:
		return regionList, listOffset + (y-contentTop)/linesPerItem
	case x > l.listW+2:
		return regionPreview, -1
	}
	return regionNone, -1
}
