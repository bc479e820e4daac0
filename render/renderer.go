package render

import (
	"fmt"
	"html"
	"math"
	"strings"

	"kitstock/barcode"
	"kitstock/model"
	"kitstock/tagcode"
	"kitstock/units"
)

const (
	defaultBackground = "#ffffff"
	defaultTextColor  = "#000000"
	defaultFontFamily = "Arial, Helvetica, sans-serif"
	defaultFontSize   = 12.0
	defaultCaptionPX  = 10.0
	lineHeightEm      = 1.2
)

// GenerateSVG lays a template out on its physical canvas and fills the
// element values from data. The output depends only on its inputs.
func GenerateSVG(tpl model.TagTemplate, data map[string]string) string {
	wpx := units.MMToPX(tpl.WidthMM)
	hpx := units.MMToPX(tpl.HeightMM)
	margin := units.MMToPX(tpl.MarginMM)

	bg := orDefault(tpl.BackgroundColor, defaultBackground)
	fontFamily := orDefault(tpl.FontFamily, defaultFontFamily)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%smm" height="%smm" viewBox="0 0 %s %s">`,
		units.FormatPX(tpl.WidthMM), units.FormatPX(tpl.HeightMM), units.FormatPX(wpx), units.FormatPX(hpx))
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%s" height="%s" fill="%s"/>`,
		units.FormatPX(wpx), units.FormatPX(hpx), attr(bg))

	if tpl.BorderWidthMM > 0 {
		bw := units.MMToPX(tpl.BorderWidthMM)
		fmt.Fprintf(&sb, `<rect x="%s" y="%s" width="%s" height="%s" fill="none" stroke="%s" stroke-width="%s"/>`,
			units.FormatPX(bw/2), units.FormatPX(bw/2),
			units.FormatPX(math.Max(wpx-bw, 0)), units.FormatPX(math.Max(hpx-bw, 0)),
			attr(orDefault(tpl.BorderColor, defaultTextColor)), units.FormatPX(bw))
	}

	fmt.Fprintf(&sb, `<g font-family="%s">`, attr(fontFamily))
	for _, el := range tpl.Elements {
		box := elementBox{
			x: margin + units.MMToPX(el.X),
			y: margin + units.MMToPX(el.Y),
			w: units.MMToPX(el.Width),
			h: units.MMToPX(el.Height),
		}
		color := orDefault(el.Color, orDefault(tpl.TextColor, defaultTextColor))
		value := ResolvePlaceholders(el.Value, data)

		switch el.Type {
		case model.ElementText:
			writeText(&sb, el, box, color, value)
		case model.ElementQRCode:
			writeQRCode(&sb, box, color, value)
		case model.ElementBarcode:
			writeBarcode(&sb, el, box, color, value)
		}
	}
	sb.WriteString(`</g></svg>`)
	return sb.String()
}

// ResolvePlaceholders replaces {name} tokens with data[name] in a single
// left-to-right pass. Tokens without an entry are kept as written.
func ResolvePlaceholders(s string, data map[string]string) string {
	if len(data) == 0 || !strings.Contains(s, "{") {
		return s
	}
	return tagcode.Substitute(s, data)
}

type elementBox struct {
	x, y, w, h float64
}

func writeText(sb *strings.Builder, el model.TemplateElement, box elementBox, color, value string) {
	if value == "" {
		return
	}
	size := el.FontSize
	if size <= 0 {
		size = defaultFontSize
	}

	anchor, x := anchorFor(el.Align, box)
	fmt.Fprintf(sb, `<text x="%s" y="%s" font-size="%s" fill="%s" text-anchor="%s" dominant-baseline="hanging"`,
		units.FormatPX(x), units.FormatPX(box.y), units.FormatPX(size), attr(color), anchor)
	if el.FontWeight != "" {
		fmt.Fprintf(sb, ` font-weight="%s"`, attr(el.FontWeight))
	}
	sb.WriteString(`>`)

	lines := strings.Split(value, "\n")
	if len(lines) == 1 {
		sb.WriteString(html.EscapeString(value))
	} else {
		for i, line := range lines {
			dy := "0"
			if i > 0 {
				dy = units.FormatPX(size * lineHeightEm)
			}
			fmt.Fprintf(sb, `<tspan x="%s" dy="%s">%s</tspan>`, units.FormatPX(x), dy, html.EscapeString(line))
		}
	}
	sb.WriteString(`</text>`)
}

func writeQRCode(sb *strings.Builder, box elementBox, color, value string) {
	sym, err := barcode.Matrix(barcode.KindQR, value)
	if err != nil {
		writePlaceholder(sb, box, color, "QR")
		return
	}
	size := math.Min(box.w, box.h)
	fmt.Fprintf(sb, `<svg x="%s" y="%s" width="%s" height="%s" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		units.FormatPX(box.x), units.FormatPX(box.y), units.FormatPX(size), units.FormatPX(size), sym.Width, sym.Height)
	fmt.Fprintf(sb, `<path fill="%s" d="%s"/></svg>`, attr(color), modulePath(sym))
}

func writeBarcode(sb *strings.Builder, el model.TemplateElement, box elementBox, color, value string) {
	sym, err := barcode.Matrix(barcode.KindCode128, value)
	if err != nil {
		writePlaceholder(sb, box, color, "BARCODE")
		return
	}

	captionSize := el.FontSize
	if captionSize <= 0 {
		captionSize = defaultCaptionPX
	}
	barsH := box.h
	if el.ShowText {
		barsH = math.Max(box.h-captionSize*lineHeightEm, box.h/2)
	}

	fmt.Fprintf(sb, `<svg x="%s" y="%s" width="%s" height="%s" viewBox="0 0 %d %d" preserveAspectRatio="none" shape-rendering="crispEdges">`,
		units.FormatPX(box.x), units.FormatPX(box.y), units.FormatPX(box.w), units.FormatPX(barsH), sym.Width, sym.Height)
	fmt.Fprintf(sb, `<path fill="%s" d="%s"/></svg>`, attr(color), modulePath(sym))

	if el.ShowText {
		fmt.Fprintf(sb, `<text x="%s" y="%s" font-size="%s" fill="%s" text-anchor="middle" dominant-baseline="hanging">%s</text>`,
			units.FormatPX(box.x+box.w/2), units.FormatPX(box.y+barsH), units.FormatPX(captionSize),
			attr(color), html.EscapeString(value))
	}
}

func writePlaceholder(sb *strings.Builder, box elementBox, color, label string) {
	fmt.Fprintf(sb, `<rect x="%s" y="%s" width="%s" height="%s" fill="none" stroke="%s" stroke-width="1" stroke-dasharray="4 2"/>`,
		units.FormatPX(box.x), units.FormatPX(box.y), units.FormatPX(box.w), units.FormatPX(box.h), attr(color))
	size := math.Min(defaultFontSize, math.Max(box.h/2, 1))
	fmt.Fprintf(sb, `<text x="%s" y="%s" font-size="%s" fill="%s" text-anchor="middle" dominant-baseline="central">%s</text>`,
		units.FormatPX(box.x+box.w/2), units.FormatPX(box.y+box.h/2), units.FormatPX(size), attr(color), label)
}

// modulePath draws each horizontal run of dark modules as one rectangle in
// module units.
func modulePath(sym barcode.Symbol) string {
	var sb strings.Builder
	for y := 0; y < sym.Height; y++ {
		for x := 0; x < sym.Width; {
			if !sym.Dark(x, y) {
				x++
				continue
			}
			start := x
			for x < sym.Width && sym.Dark(x, y) {
				x++
			}
			fmt.Fprintf(&sb, "M%d %dh%dv1h-%dz", start, y, x-start, x-start)
		}
	}
	return sb.String()
}

func anchorFor(align string, box elementBox) (string, float64) {
	switch align {
	case "center":
		return "middle", box.x + box.w/2
	case "right":
		return "end", box.x + box.w
	}
	return "start", box.x
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func attr(s string) string {
	return html.EscapeString(s)
}
