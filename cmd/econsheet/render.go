package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dlovans/econsheet/internal/store"
	"github.com/dlovans/econsheet/pkg/econsheet"
)

var (
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	readOnly     = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// renderGrid draws a cell grid as a bordered terminal table. Invalid cells
// show their error message after the value.
func renderGrid(grid [][]econsheet.Cell) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle)
	for _, row := range grid {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = styleCell(c)
		}
		t.Row(cells...)
	}
	return t.String()
}

func styleCell(c econsheet.Cell) string {
	if c.Meta.Filler {
		return ""
	}
	classes := strings.Fields(c.ClassName)
	has := func(name string) bool {
		for _, cl := range classes {
			if cl == name {
				return true
			}
		}
		return false
	}
	switch {
	case c.Error:
		text := c.Value
		if c.ErrorMessage != "" {
			text += " (" + c.ErrorMessage + ")"
		}
		return errorStyle.Render(text)
	case has("section"):
		return sectionStyle.Render(c.Value)
	case has("column-header"):
		return headerStyle.Render(c.Value)
	case has("label"):
		return labelStyle.Render(c.Value)
	case c.ReadOnly:
		return readOnly.Render(c.Value)
	}
	return c.Value
}

func renderEntries(entries []store.Entry) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "KIND", "NAME", "UPDATED")
	for _, e := range entries {
		t.Row(e.ID, e.Kind, e.Name, e.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return t.String()
}
