package style

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Alignment is a column's text alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Column describes one table column. Width is in terminal cells.
type Column struct {
	Name  string
	Width int
	Align Alignment
	Style lipgloss.Style
}

// Table renders fixed-width rows with a bold header.
type Table struct {
	columns   []Column
	rows      [][]string
	indent    string
	headerSep bool
}

// NewTable creates a table with a header separator and two-space indent.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:   columns,
		indent:    "  ",
		headerSep: true,
	}
}

// SetIndent sets the prefix of every rendered line.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// SetHeaderSeparator toggles the rule under the header.
func (t *Table) SetHeaderSeparator(on bool) *Table {
	t.headerSep = on
	return t
}

// AddRow appends a row, padding missing cells with "".
func (t *Table) AddRow(values ...string) *Table {
	row := make([]string, len(t.columns))
	copy(row, values)
	t.rows = append(t.rows, row)
	return t
}

// Render returns the table as text, one line per row.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var b strings.Builder
	header := make([]string, len(t.columns))
	for i, col := range t.columns {
		plain := truncate(col.Name, col.Width)
		header[i] = t.pad(plain, Bold.Render(plain), col.Width, col.Align)
	}
	t.writeLine(&b, header)

	if t.headerSep {
		sep := make([]string, len(t.columns))
		for i, col := range t.columns {
			sep[i] = Dim.Render(strings.Repeat("─", col.Width))
		}
		t.writeLine(&b, sep)
	}

	for _, row := range t.rows {
		cells := make([]string, len(t.columns))
		for i, col := range t.columns {
			plain := truncate(row[i], col.Width)
			cells[i] = t.pad(plain, lipgloss.NewStyle().Inherit(col.Style).Render(plain), col.Width, col.Align)
		}
		t.writeLine(&b, cells)
	}
	return b.String()
}

func (t *Table) writeLine(b *strings.Builder, cells []string) {
	b.WriteString(t.indent)
	b.WriteString(strings.Join(cells, "  "))
	b.WriteByte('\n')
}

// pad aligns styled within width using the visible width of plain.
func (t *Table) pad(plain, styled string, width int, align Alignment) string {
	w := lipgloss.Width(plain)
	if w >= width {
		return styled
	}
	gap := width - w
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + styled
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + styled + strings.Repeat(" ", gap-left)
	}
	return styled + strings.Repeat(" ", gap)
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= 3 {
		for len(runes) > 0 && lipgloss.Width(string(runes)) > width {
			runes = runes[:len(runes)-1]
		}
		return string(runes)
	}
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}
