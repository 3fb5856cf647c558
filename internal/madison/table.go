package madison

import "strings"

// Format renders rows as the fixed-width madison table:
//
//	systemd | 245.4-4ubuntu3    | focal         | source
//	systemd | 245.4-4ubuntu3.18 | focal-updates | source
//
// Column widths are computed per call from the widest value in each
// column. The last column is never padded, so lines carry no trailing
// spaces. No rows renders as the empty string.
func Format(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}

	cells := make([][4]string, len(rows))
	var widths [4]int
	for i, row := range rows {
		cells[i] = [4]string{
			row.Package,
			row.Version,
			row.Distribution(),
			strings.Join(row.Architectures, ", "),
		}
		for col, cell := range cells[i] {
			if len(cell) > widths[col] {
				widths[col] = len(cell)
			}
		}
	}

	var b strings.Builder
	for _, row := range cells {
		for col, cell := range row {
			if col > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(cell)
			if col < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[col]-len(cell)))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
