package render

import (
	"fmt"
	"math"
	"strings"

	"kitstock/model"
	"kitstock/units"
)

// SheetOptions describes the paper the labels are tiled on.
type SheetOptions struct {
	PageWidthMM  float64
	PageHeightMM float64
	MarginMM     float64
	GapMM        float64
}

// A4 is the default print sheet.
func A4() SheetOptions {
	return SheetOptions{PageWidthMM: 210, PageHeightMM: 297, MarginMM: 10, GapMM: 2}
}

// SheetLayout returns how many labels of the template fit per row and column.
// At least one label always fits so oversized labels still print.
func SheetLayout(tpl model.TagTemplate, opts SheetOptions) (cols, rows int) {
	cols = fit(opts.PageWidthMM-2*opts.MarginMM, tpl.WidthMM, opts.GapMM)
	rows = fit(opts.PageHeightMM-2*opts.MarginMM, tpl.HeightMM, opts.GapMM)
	return cols, rows
}

func fit(avail, size, gap float64) int {
	if size <= 0 {
		return 1
	}
	n := int(math.Floor((avail + gap) / (size + gap)))
	if n < 1 {
		return 1
	}
	return n
}

// Sheet tiles rendered label SVGs (all produced from tpl) onto pages.
// One SVG document is returned per page.
func Sheet(labels []string, tpl model.TagTemplate, opts SheetOptions) []string {
	if opts.PageWidthMM <= 0 || opts.PageHeightMM <= 0 {
		opts = A4()
	}
	cols, rows := SheetLayout(tpl, opts)
	perPage := cols * rows

	var pages []string
	for start := 0; start < len(labels); start += perPage {
		end := start + perPage
		if end > len(labels) {
			end = len(labels)
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%smm" height="%smm" viewBox="0 0 %s %s">`,
			units.FormatPX(opts.PageWidthMM), units.FormatPX(opts.PageHeightMM),
			units.FormatPX(units.MMToPX(opts.PageWidthMM)), units.FormatPX(units.MMToPX(opts.PageHeightMM)))
		for i, label := range labels[start:end] {
			col, row := i%cols, i/cols
			x := units.MMToPX(opts.MarginMM + float64(col)*(tpl.WidthMM+opts.GapMM))
			y := units.MMToPX(opts.MarginMM + float64(row)*(tpl.HeightMM+opts.GapMM))
			fmt.Fprintf(&sb, `<g transform="translate(%s %s)">%s</g>`, units.FormatPX(x), units.FormatPX(y), label)
		}
		sb.WriteString(`</svg>`)
		pages = append(pages, sb.String())
	}
	return pages
}
