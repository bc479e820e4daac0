package barcode

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

var (
	ErrEmptyScan   = errors.New("barcode: empty scan")
	ErrInvalidScan = errors.New("barcode: invalid scan url")
)

// ParseScan normalises the text a handheld scanner produced for an asset tag
// into the printed code. Scanners configured for keyboard wedge input on
// Japanese layouts often emit full-width characters, and QR labels may carry
// a URL instead of the bare code.
func ParseScan(raw string) (string, error) {
	s := width.Fold.String(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	// AIM symbology identifier, e.g. "]Q1" or "]C0".
	if len(s) > 3 && s[0] == ']' {
		s = s[3:]
	}

	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidScan, err)
		}
		if c := u.Query().Get("code"); c != "" {
			s = c
		} else {
			s = path.Base(strings.TrimRight(u.Path, "/"))
			if s == "." || s == "/" {
				s = ""
			}
		}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyScan
	}
	return s, nil
}
