// Package tagcode builds the human-readable identifiers printed on asset tags.
package tagcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"kitstock/model"
)

// DefaultDigits is the zero-padding width used when neither the template
// nor the company configures one.
const DefaultDigits = 4

// BuildAssetTagCode returns the printed code for an entity. A template with a
// non-empty StringTemplate drives the format; otherwise the non-empty company
// and entity prefixes are joined to the id with "-".
func BuildAssetTagCode(meta model.AssetTagMeta, entity model.EntityType, id int64, tpl *model.TagTemplate) string {
	if tpl == nil || tpl.StringTemplate == "" {
		segments := make([]string, 0, 3)
		if meta.CompanyPrefix != "" {
			segments = append(segments, meta.CompanyPrefix)
		}
		if p := meta.EntityPrefix(entity); p != "" {
			segments = append(segments, p)
		}
		segments = append(segments, strconv.FormatInt(id, 10))
		return strings.Join(segments, "-")
	}

	digits := tpl.CodeDigits
	if digits <= 0 {
		digits = meta.CodeDigits
	}
	if digits <= 0 {
		digits = DefaultDigits
	}
	padded := Pad(id, digits)
	entityPrefix := meta.EntityPrefix(entity)

	values := map[string]string{
		"prefix":         tpl.Prefix,
		"suffix":         tpl.Suffix,
		"company_prefix": meta.CompanyPrefix,
		"companyPrefix":  meta.CompanyPrefix,
		"entity_prefix":  entityPrefix,
		"entityPrefix":   entityPrefix,
		"type_prefix":    entityPrefix,
		"code":           padded,
		"number":         padded,
		"id":             strconv.FormatInt(id, 10),
	}
	return Substitute(tpl.StringTemplate, values)
}

// Pad zero-pads id to at least digits characters. Negative ids keep their
// sign in front of the padding.
func Pad(id int64, digits int) string {
	s := strconv.FormatInt(id, 10)
	sign := ""
	if id < 0 {
		sign, s = "-", s[1:]
	}
	if len(s) >= digits {
		return sign + s
	}
	return sign + strings.Repeat("0", digits-len(s)) + s
}

// Substitute replaces each {name} token whose name is in values. Unknown
// tokens and unmatched braces are copied through, and substituted text is
// never scanned again.
func Substitute(s string, values map[string]string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '{' {
			if end := strings.IndexByte(s[i+1:], '}'); end >= 0 {
				name := s[i+1 : i+1+end]
				if v, ok := values[name]; ok {
					sb.WriteString(v)
					i += end + 2
					continue
				}
			}
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

var (
	ErrUnbalancedBraces = errors.New("tagcode: unbalanced braces in string template")
	ErrNoNumber         = errors.New("tagcode: string template needs {code}, {number} or {id}")
)

// Validate checks a string template before it is saved.
func Validate(stringTemplate string) error {
	if stringTemplate == "" {
		return nil
	}
	depth := 0
	for _, r := range stringTemplate {
		switch r {
		case '{':
			depth++
			if depth > 1 {
				return ErrUnbalancedBraces
			}
		case '}':
			depth--
			if depth < 0 {
				return ErrUnbalancedBraces
			}
		}
	}
	if depth != 0 {
		return ErrUnbalancedBraces
	}
	for _, tok := range []string{"{code}", "{number}", "{id}"} {
		if strings.Contains(stringTemplate, tok) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrNoNumber, stringTemplate)
}
