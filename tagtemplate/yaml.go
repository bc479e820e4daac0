package tagtemplate

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"kitstock/model"
	"kitstock/tagcode"
)

var ErrInvalidTemplate = errors.New("invalid template")

// LoadYAML decodes one template document. Unknown keys are rejected so typos
// in hand-written files surface instead of silently rendering defaults.
func LoadYAML(r io.Reader) (model.TagTemplate, error) {
	var tpl model.TagTemplate
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tpl); err != nil {
		if errors.Is(err, io.EOF) {
			return tpl, fmt.Errorf("%w: empty document", ErrInvalidTemplate)
		}
		return tpl, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return tpl, nil
}

func DumpYAML(w io.Writer, tpl model.TagTemplate) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tpl); err != nil {
		return fmt.Errorf("failed to encode template %s: %w", tpl.ID, err)
	}
	return enc.Close()
}

// Validate rejects templates that cannot be laid out or numbered.
func Validate(tpl model.TagTemplate) error {
	if tpl.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if tpl.WidthMM <= 0 || tpl.HeightMM <= 0 {
		return fmt.Errorf("%w: width and height must be positive", ErrInvalidTemplate)
	}
	if tpl.MarginMM < 0 || 2*tpl.MarginMM >= tpl.WidthMM || 2*tpl.MarginMM >= tpl.HeightMM {
		return fmt.Errorf("%w: margin must be less than half of each side", ErrInvalidTemplate)
	}
	if tpl.BorderWidthMM < 0 {
		return fmt.Errorf("%w: border width must not be negative", ErrInvalidTemplate)
	}
	if tpl.CodeDigits < 0 || tpl.CodeDigits > 18 {
		return fmt.Errorf("%w: code digits must be between 0 and 18", ErrInvalidTemplate)
	}
	if err := tagcode.Validate(tpl.StringTemplate); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	for i, el := range tpl.Elements {
		if el.Width < 0 || el.Height < 0 {
			return fmt.Errorf("%w: element %d has a negative size", ErrInvalidTemplate, i)
		}
		if el.FontSize < 0 {
			return fmt.Errorf("%w: element %d has a negative font size", ErrInvalidTemplate, i)
		}
	}
	return nil
}
