package econsheet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func testOptions() []Option {
	return []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(zap.NewNop()),
	}
}

func loadFields(t *testing.T, name string) Fields {
	t.Helper()
	s, err := LoadSchema(filepath.Join("testdata", name))
	require.NoError(t, err)
	return s.Fields
}

func findCell(grid [][]Cell, path ...string) (Cell, bool) {
	want := Path(path)
	for _, row := range grid {
		for _, c := range row {
			if c.Meta.Path.Equal(want) && c.ClassName != classLabel {
				return c, true
			}
		}
	}
	return Cell{}, false
}

func mustCell(t *testing.T, grid [][]Cell, path ...string) Cell {
	t.Helper()
	c, ok := findCell(grid, path...)
	require.Truef(t, ok, "no cell at %s", Path(path))
	return c
}

func hasPathPrefix(grid [][]Cell, prefix string) bool {
	for _, row := range grid {
		for _, c := range row {
			if len(c.Meta.Path) > 0 && c.Meta.Path[0] == prefix {
				return true
			}
			if d := c.SheetItemData; d != nil && len(d.Path) > 0 && d.Path[0] == prefix {
				return true
			}
		}
	}
	return false
}

func rowValues(row []Cell) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		if c.Meta.Filler {
			continue
		}
		out = append(out, c.Value)
	}
	return out
}
