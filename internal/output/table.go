package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// columnGap separates table columns.
const columnGap = "  "

// Align is a column's horizontal alignment.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

type column struct {
	title string
	width int
	align Align
}

// Table renders rows under a header and a rule, sizing each column to its
// widest cell. Widths ignore ANSI styling, so styled cells line up.
type Table struct {
	cols []column
	rows [][]string
}

// NewTable returns an empty table with the given headers, all columns
// left-aligned.
func NewTable(headers ...string) *Table {
	t := &Table{cols: make([]column, len(headers))}
	for i, h := range headers {
		t.cols[i] = column{title: h, width: visualLen(h)}
	}
	return t
}

// AlignRight right-aligns the given column indexes, typically counts.
// Out-of-range indexes are ignored.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, i := range cols {
		if i >= 0 && i < len(t.cols) {
			t.cols[i].align = AlignRight
		}
	}
	return t
}

// AddRow appends a row. Missing values render empty and extra values are
// dropped.
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.cols))
	copy(row, values)
	for i, v := range row {
		t.cols[i].width = max(t.cols[i].width, visualLen(v))
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render returns the table, one line per row, each line prefixed with a
// single space to sit under Section headers.
func (t *Table) Render() string {
	if len(t.cols) == 0 {
		return ""
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	if IsNoColor() {
		header = lipgloss.NewStyle()
	}

	var sb strings.Builder
	t.line(&sb, func(i int, c column) string { return header.Render(c.fit(c.title)) })
	t.line(&sb, func(_ int, c column) string { return StyleMuted.Render(strings.Repeat("─", c.width)) })
	for _, row := range t.rows {
		t.line(&sb, func(i int, c column) string { return c.fit(row[i]) })
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (t *Table) String() string {
	return t.Render()
}

func (t *Table) line(sb *strings.Builder, cell func(int, column) string) {
	sb.WriteByte(' ')
	for i, c := range t.cols {
		if i > 0 {
			sb.WriteString(columnGap)
		}
		sb.WriteString(cell(i, c))
	}
	sb.WriteByte('\n')
}

// fit pads s to the column width on the side opposite its alignment.
// Cells wider than the column are left as is.
func (c column) fit(s string) string {
	gap := c.width - visualLen(s)
	if gap <= 0 {
		return s
	}
	if c.align == AlignRight {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// visualLen is the printed width of s, ignoring ANSI escapes.
func visualLen(s string) int {
	return lipgloss.Width(s)
}
