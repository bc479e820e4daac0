package tagcode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"kitstock/model"
)

var meta = model.AssetTagMeta{
	CompanyPrefix:   "ACME",
	EquipmentPrefix: "EQ",
	ArticlePrefix:   "AR",
	LocationPrefix:  "",
}

func TestBuildWithoutTemplate(t *testing.T) {
	assert.Equal(t, "ACME-EQ-42", BuildAssetTagCode(meta, model.EntityEquipment, 42, nil))
	assert.Equal(t, "ACME-AR-7", BuildAssetTagCode(meta, model.EntityArticle, 7, nil))
	// Missing entity prefix drops its segment.
	assert.Equal(t, "ACME-3", BuildAssetTagCode(meta, model.EntityLocation, 3, nil))

	onlyEntity := model.AssetTagMeta{EquipmentPrefix: "EQ"}
	assert.Equal(t, "EQ-42", BuildAssetTagCode(onlyEntity, model.EntityEquipment, 42, nil))

	assert.Equal(t, "42", BuildAssetTagCode(model.AssetTagMeta{}, model.EntityEquipment, 42, nil))
}

func TestBuildEmptyStringTemplateFallsBack(t *testing.T) {
	tpl := &model.TagTemplate{Prefix: "X", CodeDigits: 6}
	assert.Equal(t, "ACME-EQ-42", BuildAssetTagCode(meta, model.EntityEquipment, 42, tpl))
}

func TestBuildWithTemplate(t *testing.T) {
	cases := []struct {
		name string
		tpl  model.TagTemplate
		m    model.AssetTagMeta
		want string
	}{
		{
			name: "prefix code suffix",
			tpl:  model.TagTemplate{StringTemplate: "{prefix}{code}{suffix}", Prefix: "T-", Suffix: "-Z"},
			m:    meta,
			want: "T-0042-Z",
		},
		{
			name: "company aliases",
			tpl:  model.TagTemplate{StringTemplate: "{company_prefix}/{companyPrefix}/{number}"},
			m:    meta,
			want: "ACME/ACME/0042",
		},
		{
			name: "entity aliases",
			tpl:  model.TagTemplate{StringTemplate: "{entity_prefix}.{entityPrefix}.{type_prefix}.{id}"},
			m:    meta,
			want: "EQ.EQ.EQ.42",
		},
		{
			name: "template digits win",
			tpl:  model.TagTemplate{StringTemplate: "{code}", CodeDigits: 6},
			m:    model.AssetTagMeta{CodeDigits: 3},
			want: "000042",
		},
		{
			name: "company digits used when template has none",
			tpl:  model.TagTemplate{StringTemplate: "{code}"},
			m:    model.AssetTagMeta{CodeDigits: 3},
			want: "042",
		},
		{
			name: "id longer than padding",
			tpl:  model.TagTemplate{StringTemplate: "{code}", CodeDigits: 1},
			m:    meta,
			want: "42",
		},
		{
			name: "unknown token stays literal",
			tpl:  model.TagTemplate{StringTemplate: "{year}-{code}"},
			m:    meta,
			want: "{year}-0042",
		},
		{
			name: "unmatched brace copied",
			tpl:  model.TagTemplate{StringTemplate: "{code}{"},
			m:    meta,
			want: "0042{",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tpl := tc.tpl
			assert.Equal(t, tc.want, BuildAssetTagCode(tc.m, model.EntityEquipment, 42, &tpl))
		})
	}
}

func TestSubstituteDoesNotRescan(t *testing.T) {
	got := Substitute("{a}{b}", map[string]string{"a": "{b}", "b": "x"})
	assert.Equal(t, "{b}x", got)
}

func TestPad(t *testing.T) {
	assert.Equal(t, "0007", Pad(7, 4))
	assert.Equal(t, "12345", Pad(12345, 4))
	assert.Equal(t, "0", Pad(0, 0))
	assert.Equal(t, "-007", Pad(-7, 3))
	assert.Equal(t, "-9223372036854775808", Pad(math.MinInt64, 4))
	assert.Equal(t, "-09223372036854775808", Pad(math.MinInt64, 20))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(""))
	assert.NoError(t, Validate("{prefix}{code}"))
	assert.NoError(t, Validate("X-{id}"))
	assert.ErrorIs(t, Validate("{prefix"), ErrUnbalancedBraces)
	assert.ErrorIs(t, Validate("prefix}{code}"), ErrUnbalancedBraces)
	assert.ErrorIs(t, Validate("{{code}}"), ErrUnbalancedBraces)
	assert.ErrorIs(t, Validate("{prefix}-{suffix}"), ErrNoNumber)
}
