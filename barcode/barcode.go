package barcode

import (
	"fmt"
	"image/color"

	bc "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/qr"
)

type Kind int

const (
	KindQR Kind = iota
	KindCode128
)

func (k Kind) String() string {
	switch k {
	case KindQR:
		return "qr"
	case KindCode128:
		return "code128"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Symbol is an unscaled module grid. Code 128 symbols are one module high.
type Symbol struct {
	Width   int
	Height  int
	modules []bool
}

// Dark reports whether the module at (x, y) is printed.
func (s Symbol) Dark(x, y int) bool {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return false
	}
	return s.modules[y*s.Width+x]
}

// Matrix encodes content and returns its module grid without quiet zone.
func Matrix(kind Kind, content string) (Symbol, error) {
	if content == "" {
		return Symbol{}, fmt.Errorf("barcode: empty content")
	}

	var code bc.Barcode
	var err error
	switch kind {
	case KindQR:
		code, err = qr.Encode(content, qr.M, qr.Auto)
	case KindCode128:
		code, err = code128.Encode(content)
	default:
		return Symbol{}, fmt.Errorf("barcode: unsupported kind %v", kind)
	}
	if err != nil {
		return Symbol{}, fmt.Errorf("barcode: encode %v %q: %w", kind, content, err)
	}

	b := code.Bounds()
	s := Symbol{
		Width:   b.Dx(),
		Height:  b.Dy(),
		modules: make([]bool, b.Dx()*b.Dy()),
	}
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			g := color.GrayModel.Convert(code.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			s.modules[y*s.Width+x] = g.Y < 128
		}
	}
	return s, nil
}
