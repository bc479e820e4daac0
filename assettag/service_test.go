package assettag

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitstock/cache"
	"kitstock/database"
	"kitstock/loader"
	"kitstock/model"
	"kitstock/render"
)

type fakeRasterizer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRasterizer) RasterizePNG(_ context.Context, svg string, _, _, _ float64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]byte("\x89PNG"), svg[:8]...), nil
}

const templateID = "3c1d3f4e-0000-4000-8000-000000000001"

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, loader.InitDatabase(ctx, db))

	require.NoError(t, database.UpsertCompany(ctx, db, model.Company{ID: 1, Name: "Acme", AssetTagMeta: model.AssetTagMeta{
		CompanyPrefix: "AC", EquipmentPrefix: "EQ", CodeDigits: 5,
	}}))
	require.NoError(t, database.UpsertCompany(ctx, db, model.Company{ID: 2, Name: "Bare"}))

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	_, err = database.UpsertEquipmentInTx(ctx, tx, model.Equipment{ID: 10, CompanyID: 1, Name: "Mixer", SerialNumber: "SN-1"})
	require.NoError(t, err)
	_, err = database.UpsertEquipmentInTx(ctx, tx, model.Equipment{ID: 11, CompanyID: 1, Name: "Speaker"})
	require.NoError(t, err)
	_, err = database.UpsertEquipmentInTx(ctx, tx, model.Equipment{ID: 20, CompanyID: 2, Name: "Ladder"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return db
}

func addTemplate(t *testing.T, db *sqlx.DB, tpl model.TagTemplate) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, database.CreateTemplateInTx(ctx, tx, tpl))
	require.NoError(t, tx.Commit())
}

func labelTemplate() model.TagTemplate {
	return model.TagTemplate{
		ID: templateID, CompanyID: 1, Name: "Small", WidthMM: 50, HeightMM: 25, MarginMM: 2,
		StringTemplate: "{company_prefix}-{entity_prefix}-{code}", IsDefault: true,
		Elements: model.Elements{
			{Type: model.ElementText, X: 0, Y: 0, Width: 46, Height: 6, Value: "{code}"},
			{Type: model.ElementText, X: 0, Y: 8, Width: 46, Height: 6, Value: "{name} / {serial_number}"},
		},
	}
}

func newService(t *testing.T, rz Rasterizer) (*Service, *sqlx.DB) {
	db := newTestDB(t)
	addTemplate(t, db, labelTemplate())
	mc := cache.NewMemoryCache(cache.DefaultConfig())
	t.Cleanup(func() { mc.Close() })
	svc := NewService(db, mc, rz, Options{ExportWorkers: 2})
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return svc, db
}

func TestCreateForEntityNumbersPerCompany(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	first, err := svc.CreateForEntity(ctx, 1, model.EntityEquipment, 10, "")
	require.NoError(t, err)
	assert.Equal(t, "AC-EQ-00001", first.PrintedCode)
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, templateID, first.TemplateID)
	assert.NotZero(t, first.ID)

	second, err := svc.CreateForEntity(ctx, 1, model.EntityEquipment, 11, templateID)
	require.NoError(t, err)
	assert.Equal(t, "AC-EQ-00002", second.PrintedCode)

	// no templates and no prefixes: bare sequence number
	bare, err := svc.CreateForEntity(ctx, 2, model.EntityEquipment, 20, "")
	require.NoError(t, err)
	assert.Equal(t, "1", bare.PrintedCode)
	assert.Equal(t, "", bare.TemplateID)
}

func TestCreateForEntityErrors(t *testing.T) {
	svc, db := newService(t, nil)
	ctx := context.Background()

	_, err := svc.CreateForEntity(ctx, 1, model.EntityEquipment, 999, "")
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = svc.CreateForEntity(ctx, 2, model.EntityEquipment, 20, templateID)
	assert.ErrorIs(t, err, database.ErrNotFound, "template of another company")

	fixed := labelTemplate()
	fixed.ID, fixed.Name, fixed.StringTemplate, fixed.IsDefault = "fixed", "Fixed", "ASSET", false
	addTemplate(t, db, fixed)
	_, err = svc.CreateForEntity(ctx, 1, model.EntityEquipment, 10, "fixed")
	require.NoError(t, err)
	_, err = svc.CreateForEntity(ctx, 1, model.EntityEquipment, 11, "fixed")
	assert.ErrorIs(t, err, database.ErrDuplicateCode)
}

func TestRenderSVG(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	tag, err := svc.CreateForEntity(ctx, 1, model.EntityEquipment, 10, "")
	require.NoError(t, err)

	svg, err := svc.RenderSVG(ctx, tag.ID, "")
	require.NoError(t, err)
	assert.Contains(t, svg, `width="50mm" height="25mm"`)
	assert.Contains(t, svg, ">AC-EQ-00001</text>")
	assert.Contains(t, svg, ">Mixer / SN-1</text>")

	again, err := svc.RenderSVG(ctx, tag.ID, "")
	require.NoError(t, err)
	assert.Equal(t, svg, again)

	_, err = svc.RenderSVG(ctx, 404, "")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRenderSVGWithoutTemplate(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	tag, err := svc.CreateForEntity(ctx, 2, model.EntityEquipment, 20, "")
	require.NoError(t, err)

	_, err = svc.RenderSVG(ctx, tag.ID, "")
	assert.ErrorIs(t, err, ErrNoTemplate)
}

func TestRenderSVGAfterTemplateDeleted(t *testing.T) {
	svc, db := newService(t, nil)
	ctx := context.Background()
	tag, err := svc.CreateForEntity(ctx, 1, model.EntityEquipment, 10, "")
	require.NoError(t, err)
	require.Equal(t, templateID, tag.TemplateID)

	large := labelTemplate()
	large.ID = "3c1d3f4e-0000-4000-8000-000000000002"
	large.Name = "Large"
	large.WidthMM = 80
	large.IsDefault = false
	addTemplate(t, db, large)
	require.NoError(t, database.DeleteTemplate(ctx, db, templateID))

	svg, err := svc.RenderSVG(ctx, tag.ID, "")
	require.NoError(t, err)
	assert.Contains(t, svg, `width="80mm"`)
	assert.Contains(t, svg, "AC-EQ-00001")

	// an explicitly requested template is not replaced
	_, err = svc.RenderSVG(ctx, tag.ID, templateID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRenderPNGUsesCache(t *testing.T) {
	rz := &fakeRasterizer{}
	svc, _ := newService(t, rz)
	ctx := context.Background()
	tag, err := svc.CreateForEntity(ctx, 1, model.EntityEquipment, 10, "")
	require.NoError(t, err)

	png, err := svc.RenderPNG(ctx, tag.ID, "", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = svc.RenderPNG(ctx, tag.ID, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, rz.calls)

	_, err = svc.RenderPNG(ctx, tag.ID, "", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, rz.calls)
}

func TestRenderPNGWithoutRasterizer(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	tag, err := svc.CreateForEntity(ctx, 1, model.EntityEquipment, 10, "")
	require.NoError(t, err)

	_, err = svc.RenderPNG(ctx, tag.ID, "", 2)
	assert.ErrorIs(t, err, ErrNoRasterizer)
}

func TestLookup(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	tag, err := svc.CreateForEntity(ctx, 1, model.EntityEquipment, 10, "")
	require.NoError(t, err)

	for _, scan := range []string{
		"AC-EQ-00001",
		"]Q1AC-EQ-00001\r\n",
		"ac-eq-00001",
		"https://tags.example.com/t/AC-EQ-00001",
		"ＡＣ－ＥＱ－００００１",
	} {
		got, err := svc.Lookup(ctx, 1, scan)
		require.NoError(t, err, scan)
		assert.Equal(t, tag.ID, got.ID, scan)
	}

	_, err = svc.Lookup(ctx, 2, "AC-EQ-00001")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestPreviewCode(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	code, err := svc.PreviewCode(ctx, 1, model.EntityEquipment, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "AC-EQ-00001", code)

	_, err = svc.CreateForEntity(ctx, 1, model.EntityEquipment, 10, "")
	require.NoError(t, err)
	code, err = svc.PreviewCode(ctx, 1, model.EntityEquipment, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "AC-EQ-00002", code)

	code, err = svc.PreviewCode(ctx, 2, model.EntityLocation, 42, "")
	require.NoError(t, err)
	assert.Equal(t, "42", code)
}

func TestExportZIP(t *testing.T) {
	rz := &fakeRasterizer{}
	svc, _ := newService(t, rz)
	ctx := context.Background()

	var ids []int64
	for _, e := range []int64{10, 11} {
		tag, err := svc.CreateForEntity(ctx, 1, model.EntityEquipment, e, "")
		require.NoError(t, err)
		ids = append(ids, tag.ID)
	}

	var buf bytes.Buffer
	require.NoError(t, svc.ExportZIP(ctx, &buf, ids, "svg", 0))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "AC-EQ-00001.svg", zr.File[0].Name)
	assert.Equal(t, "AC-EQ-00002.svg", zr.File[1].Name)

	f, err := zr.File[1].Open()
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "Speaker")

	buf.Reset()
	require.NoError(t, svc.ExportZIP(ctx, &buf, ids, "PNG", 2))
	zr, err = zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, "AC-EQ-00001.png", zr.File[0].Name)
	assert.Equal(t, 2, rz.calls)

	assert.ErrorIs(t, svc.ExportZIP(ctx, &buf, ids, "pdf", 0), ErrBadFormat)
	assert.ErrorIs(t, svc.ExportZIP(ctx, &buf, []int64{ids[0], 999}, "svg", 0), database.ErrNotFound)
}

func TestSheet(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	var ids []int64
	for _, e := range []int64{10, 11} {
		tag, err := svc.CreateForEntity(ctx, 1, model.EntityEquipment, e, "")
		require.NoError(t, err)
		ids = append(ids, tag.ID)
	}

	pages, err := svc.Sheet(ctx, ids, "", render.A4())
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "AC-EQ-00001")
	assert.Contains(t, pages[0], "AC-EQ-00002")
	assert.Contains(t, pages[0], `width="210mm" height="297mm"`)

	other, err := svc.CreateForEntity(ctx, 2, model.EntityEquipment, 20, "")
	require.NoError(t, err)
	_, err = svc.Sheet(ctx, append(ids, other.ID), "", render.A4())
	assert.ErrorIs(t, err, ErrMixedCompany)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "AC-EQ-00001", fileName("AC-EQ-00001"))
	assert.Equal(t, "A_B_C", fileName("A/B C"))
	assert.Equal(t, "label", fileName("../"))
}
