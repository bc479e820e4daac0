package tagtemplate

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitstock/model"
)

const sampleYAML = `
name: Equipment 50x25
company_id: 1
width_mm: 50
height_mm: 25
margin_mm: 2
string_template: "{company_prefix}-{entity_prefix}-{code}"
code_digits: 5
elements:
  - type: qrcode
    x: 0
    y: 0
    width: 21
    height: 21
    value: "{printed_code}"
  - type: text
    x: 23
    y: 2
    width: 23
    height: 6
    value: "{name}"
    font_size: 10
    align: right
`

func TestLoadYAML(t *testing.T) {
	tpl, err := LoadYAML(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "Equipment 50x25", tpl.Name)
	assert.Equal(t, int64(1), tpl.CompanyID)
	assert.Equal(t, 50.0, tpl.WidthMM)
	assert.Equal(t, 5, tpl.CodeDigits)
	require.Len(t, tpl.Elements, 2)
	assert.Equal(t, model.ElementQRCode, tpl.Elements[0].Type)
	assert.Equal(t, "right", tpl.Elements[1].Align)
	assert.Equal(t, 10.0, tpl.Elements[1].FontSize)
	assert.NoError(t, Validate(tpl))
}

func TestLoadYAMLRejectsUnknownKeysAndEmpty(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("name: x\nwidht_mm: 10\n"))
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	_, err = LoadYAML(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestDumpYAMLRoundTrip(t *testing.T) {
	tpl, err := LoadYAML(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	tpl.ID = "abc"

	var buf bytes.Buffer
	require.NoError(t, DumpYAML(&buf, tpl))
	assert.Contains(t, buf.String(), "width_mm: 50")
	assert.Contains(t, buf.String(), "{company_prefix}-{entity_prefix}-{code}")

	back, err := LoadYAML(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(tpl, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	base := model.TagTemplate{Name: "t", WidthMM: 40, HeightMM: 20, MarginMM: 2}
	require.NoError(t, Validate(base))

	cases := map[string]func(*model.TagTemplate){
		"no name":         func(t *model.TagTemplate) { t.Name = "" },
		"zero width":      func(t *model.TagTemplate) { t.WidthMM = 0 },
		"negative":        func(t *model.TagTemplate) { t.HeightMM = -1 },
		"huge margin":     func(t *model.TagTemplate) { t.MarginMM = 10 },
		"negative margin": func(t *model.TagTemplate) { t.MarginMM = -1 },
		"no number":       func(t *model.TagTemplate) { t.StringTemplate = "{prefix}" },
		"braces":          func(t *model.TagTemplate) { t.StringTemplate = "{code" },
		"digits":          func(t *model.TagTemplate) { t.CodeDigits = 40 },
		"element size": func(t *model.TagTemplate) {
			t.Elements = model.Elements{{Type: model.ElementText, Width: -3}}
		},
	}
	for name, mutate := range cases {
		tpl := base
		mutate(&tpl)
		assert.ErrorIs(t, Validate(tpl), ErrInvalidTemplate, name)
	}
}
