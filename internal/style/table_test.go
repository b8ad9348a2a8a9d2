package style

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scanTable mirrors the columns `reap scan` prints.
func scanTable() *Table {
	return NewTable(
		Column{Name: "PID", Width: 7, Align: AlignRight},
		Column{Name: "NAME", Width: 6},
		Column{Name: "COMMAND", Width: 20, Style: Dim},
	).SetIndent("")
}

func renderLines(t *testing.T, tbl *Table) []string {
	t.Helper()
	out := stripAnsi(tbl.Render())
	require.True(t, strings.HasSuffix(out, "\n"))
	return strings.Split(strings.TrimSuffix(out, "\n"), "\n")
}

func TestTable_ScanColumns(t *testing.T) {
	tbl := scanTable()
	tbl.AddRow("100", "chrome", "chrome --remote-debugging-port=9222 --user-data-dir=/tmp/x")
	tbl.AddRow("4242", "chrome", "chrome")

	lines := renderLines(t, tbl)
	require.Len(t, lines, 4, "header, separator, two rows")

	assert.Equal(t, "    PID  NAME    COMMAND", strings.TrimRight(lines[0], " "))
	assert.Equal(t, strings.Repeat("─", 7)+"  "+strings.Repeat("─", 6)+"  "+strings.Repeat("─", 20), lines[1])
	assert.Equal(t, "    100  chrome  chrome --remote-d...", lines[2], "PID right-aligned, long command truncated")
	assert.Equal(t, "   4242  chrome  chrome", strings.TrimRight(lines[3], " "))

	for _, line := range lines {
		assert.Equal(t, 7+2+6+2+20, lipgloss.Width(line), "every line is column aligned: %q", line)
	}
}

func TestTable_StyledColumnKeepsAlignment(t *testing.T) {
	tbl := NewTable(
		Column{Name: "VERDICT", Width: 10},
		Column{Name: "COMMAND", Width: 12, Style: Warning},
	).SetIndent("")
	tbl.AddRow(Warning.Render("automation"), "chrome")
	tbl.AddRow("everyday", "chromium")

	lines := renderLines(t, tbl)
	require.Len(t, lines, 4)
	assert.Equal(t, "automation  chrome", strings.TrimRight(lines[2], " "))
	assert.Equal(t, "everyday    chromium", strings.TrimRight(lines[3], " "))
}

func TestTable_DefaultsAndOptions(t *testing.T) {
	tbl := NewTable(Column{Name: "PID", Width: 5})
	assert.Equal(t, "  ", tbl.indent)
	assert.True(t, tbl.headerSep)

	tbl.SetHeaderSeparator(false).SetIndent(">> ").AddRow("7")
	lines := renderLines(t, tbl)
	require.Len(t, lines, 2, "no separator")
	assert.Equal(t, ">> PID  ", lines[0])
	assert.Equal(t, ">> 7    ", lines[1])
}

func TestTable_AddRowPadsMissingCells(t *testing.T) {
	tbl := scanTable()
	tbl.AddRow("100")

	require.Len(t, tbl.rows, 1)
	assert.Equal(t, []string{"100", "", ""}, tbl.rows[0])
}

func TestTable_RenderWithoutColumns(t *testing.T) {
	assert.Empty(t, NewTable().Render())
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "chrome", 10, "chrome"},
		{"exact", "chrome", 6, "chrome"},
		{"ellipsis", "chromium-browser", 10, "chromiu..."},
		{"unbounded", "chromium-browser", 0, "chromium-browser"},
		{"narrow", "chromium", 2, "ch"},
		{"multibyte", "/tmp/профиль", 8, "/tmp/..."},
		{"multibyte narrow", "профиль", 3, "про"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.width)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestStripAnsi(t *testing.T) {
	assert.Equal(t, "automation", stripAnsi("\x1b[33mautomation\x1b[0m"))
	assert.Equal(t, "plain", stripAnsi("plain"))
}
