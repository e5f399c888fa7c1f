package econsheet

// GenData renders a whole assumption as grid rows. It returns nil when state
// is empty. Every row is padded with filler cells to the width of the widest
// row, and each cell carries its coordinates and border flags.
func GenData(fields Fields, state map[string]any, opts ...Option) [][]Cell {
	if len(state) == 0 {
		return nil
	}
	o := newOptions(opts)
	w := newWalker(o)
	w.walkFields(fields, state, nil, nil)
	if len(w.rows) == 0 {
		return nil
	}
	return layout(w.rows)
}

func layout(rows [][]Cell) [][]Cell {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == 0 {
		return nil
	}
	out := make([][]Cell, len(rows))
	for i, r := range rows {
		row := make([]Cell, width)
		copy(row, r)
		for j := len(r); j < width; j++ {
			row[j] = fillerCell()
		}
		for j := range row {
			c := &row[j]
			c.Meta.Row = i
			c.Meta.Col = j
			c.Meta.FirstRow = i == 0
			c.Meta.LastRow = i == len(rows)-1
			c.Meta.FirstCol = j == 0
			c.Meta.LastCol = j == width-1
			if c.Error {
				c.ClassName = appendClass(c.ClassName, classError)
			}
		}
		out[i] = row
	}
	// The grid host treats the origin cell as its focus anchor.
	out[0][0].ReadOnly = false
	return out
}

func appendClass(classes, c string) string {
	if classes == "" {
		return c
	}
	return classes + " " + c
}
