package assettag

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kitstock/barcode"
	"kitstock/cache"
	"kitstock/database"
	"kitstock/mappers"
	"kitstock/model"
	"kitstock/render"
	"kitstock/tagcode"
	"kitstock/units"
)

var (
	ErrNoTemplate   = errors.New("no label template available")
	ErrNoRasterizer = errors.New("png rendering is not configured")
	ErrBadFormat    = errors.New("format must be svg or png")
	ErrMixedCompany = errors.New("tags belong to different companies")
)

// Rasterizer converts label SVG to PNG.
type Rasterizer interface {
	RasterizePNG(ctx context.Context, svg string, wpx, hpx, scale float64) ([]byte, error)
}

type Options struct {
	CacheTTL      time.Duration
	ExportWorkers int
	DefaultScale  float64
}

// Service issues asset tags and renders their labels. Cache and Rasterizer
// are optional.
type Service struct {
	db         *sqlx.DB
	cache      cache.Cache
	rasterizer Rasterizer
	opts       Options
	now        func() time.Time
}

func NewService(db *sqlx.DB, c cache.Cache, rz Rasterizer, opts Options) *Service {
	if opts.ExportWorkers < 1 {
		opts.ExportWorkers = 4
	}
	if opts.DefaultScale <= 0 {
		opts.DefaultScale = 2
	}
	return &Service{db: db, cache: c, rasterizer: rz, opts: opts, now: time.Now}
}

// CreateForEntity numbers and stores a new tag for an existing entity. An
// empty templateID uses the company's default template; a company with no
// templates gets prefix-joined codes.
func (s *Service) CreateForEntity(ctx context.Context, companyID int64, entity model.EntityType, entityID int64, templateID string) (*model.AssetTag, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	company, err := database.GetCompany(ctx, tx, companyID)
	if err != nil {
		return nil, err
	}
	if _, err := loadEntity(ctx, tx, companyID, entity, entityID); err != nil {
		return nil, err
	}
	tpl, err := resolveTemplate(ctx, tx, companyID, templateID)
	if err != nil && !errors.Is(err, ErrNoTemplate) {
		return nil, err
	}

	seq, err := database.NextAssetTagNumberInTx(ctx, tx, companyID, entity)
	if err != nil {
		return nil, err
	}

	tag := &model.AssetTag{
		CompanyID:   companyID,
		EntityType:  entity,
		EntityID:    entityID,
		Sequence:    seq,
		PrintedCode: tagcode.BuildAssetTagCode(company.AssetTagMeta, entity, seq, tpl),
		CreatedAt:   s.now().UTC(),
	}
	if tpl != nil {
		tag.TemplateID = tpl.ID
	}
	if err := database.CreateAssetTagInTx(ctx, tx, tag); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit asset tag: %w", err)
	}

	zap.S().Infof("Asset tag %s issued for %s %d (company %d)", tag.PrintedCode, entity, entityID, companyID)
	return tag, nil
}

// View returns a tag with its company and entity names.
func (s *Service) View(ctx context.Context, tagID int64) (*mappers.AssetTagView, error) {
	tag, err := database.GetAssetTag(ctx, s.db, tagID)
	if err != nil {
		return nil, err
	}
	company, err := database.GetCompany(ctx, s.db, tag.CompanyID)
	if err != nil {
		return nil, err
	}
	entity := s.entityOrNil(ctx, tag)
	v := mappers.ToAssetTagView(*company, *tag, entity)
	return &v, nil
}

// RenderSVG renders the label of a tag. templateID overrides the template the
// tag was issued with.
func (s *Service) RenderSVG(ctx context.Context, tagID int64, templateID string) (string, error) {
	svg, _, err := s.label(ctx, tagID, templateID, nil)
	return svg, err
}

// RenderPNG rasterizes the label. scale <= 0 uses the configured default.
func (s *Service) RenderPNG(ctx context.Context, tagID int64, templateID string, scale float64) ([]byte, error) {
	svg, tpl, err := s.label(ctx, tagID, templateID, nil)
	if err != nil {
		return nil, err
	}
	return s.rasterize(ctx, svg, tpl, scale)
}

func (s *Service) rasterize(ctx context.Context, svg string, tpl *model.TagTemplate, scale float64) ([]byte, error) {
	if s.rasterizer == nil {
		return nil, ErrNoRasterizer
	}
	if scale <= 0 {
		scale = s.opts.DefaultScale
	}

	key := cache.Key("png", svg, strconv.FormatFloat(scale, 'f', -1, 64))
	if b, ok := s.cacheGet(ctx, key); ok {
		return b, nil
	}
	png, err := s.rasterizer.RasterizePNG(ctx, svg, units.MMToPX(tpl.WidthMM), units.MMToPX(tpl.HeightMM), scale)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, png)
	return png, nil
}

// label loads everything a tag's label depends on and renders it. A non-nil
// fixed template bypasses template resolution.
func (s *Service) label(ctx context.Context, tagID int64, templateID string, fixed *model.TagTemplate) (string, *model.TagTemplate, error) {
	tag, err := database.GetAssetTag(ctx, s.db, tagID)
	if err != nil {
		return "", nil, err
	}
	company, err := database.GetCompany(ctx, s.db, tag.CompanyID)
	if err != nil {
		return "", nil, err
	}

	tpl := fixed
	if tpl == nil {
		stored := templateID == ""
		if stored {
			templateID = tag.TemplateID
		}
		tpl, err = resolveTemplate(ctx, s.db, tag.CompanyID, templateID)
		if stored && templateID != "" && errors.Is(err, database.ErrNotFound) {
			// the template the tag was issued with has been deleted
			zap.S().Warnf("Template %s of tag %d is gone, using the company default", templateID, tag.ID)
			tpl, err = resolveTemplate(ctx, s.db, tag.CompanyID, "")
		}
		if err != nil {
			return "", nil, err
		}
	}

	data := mappers.Placeholders(*company, *tag, s.entityOrNil(ctx, tag))
	tplJSON, err := json.Marshal(tpl)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode template %s: %w", tpl.ID, err)
	}

	key := cache.Key("svg", string(tplJSON), cache.MapKey(data))
	if b, ok := s.cacheGet(ctx, key); ok {
		return string(b), tpl, nil
	}
	svg := render.GenerateSVG(*tpl, data)
	s.cacheSet(ctx, key, []byte(svg))
	return svg, tpl, nil
}

// Lookup resolves a scanner reading (plain code, AIM-prefixed code or a URL
// carrying the code) to the tag it was printed for.
func (s *Service) Lookup(ctx context.Context, companyID int64, scan string) (*model.AssetTag, error) {
	code, err := barcode.ParseScan(scan)
	if err != nil {
		return nil, err
	}
	tag, err := database.GetAssetTagByCode(ctx, s.db, companyID, code)
	if errors.Is(err, database.ErrNotFound) && strings.ToUpper(code) != code {
		// handheld scanners in lower-case mode
		return database.GetAssetTagByCode(ctx, s.db, companyID, strings.ToUpper(code))
	}
	return tag, err
}

// PreviewCode shows the code a tag would get. id <= 0 previews the next
// number of the company's sequence without consuming it.
func (s *Service) PreviewCode(ctx context.Context, companyID int64, entity model.EntityType, id int64, templateID string) (string, error) {
	company, err := database.GetCompany(ctx, s.db, companyID)
	if err != nil {
		return "", err
	}
	tpl, err := resolveTemplate(ctx, s.db, companyID, templateID)
	if err != nil && !errors.Is(err, ErrNoTemplate) {
		return "", err
	}
	if id <= 0 {
		if id, err = database.PeekAssetTagNumber(ctx, s.db, companyID, entity); err != nil {
			return "", err
		}
	}
	return tagcode.BuildAssetTagCode(company.AssetTagMeta, entity, id, tpl), nil
}

// Sheet tiles the labels of tagIDs onto print pages. Every label uses the
// same template: templateID, or the one the first tag resolves to. All tags
// must belong to one company.
func (s *Service) Sheet(ctx context.Context, tagIDs []int64, templateID string, opts render.SheetOptions) ([]string, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}
	var companyID int64
	for i, id := range tagIDs {
		tag, err := database.GetAssetTag(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			companyID = tag.CompanyID
		} else if tag.CompanyID != companyID {
			return nil, fmt.Errorf("tag %d (company %d, sheet company %d): %w", id, tag.CompanyID, companyID, ErrMixedCompany)
		}
	}

	_, tpl, err := s.label(ctx, tagIDs[0], templateID, nil)
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(tagIDs))
	for i, id := range tagIDs {
		if labels[i], _, err = s.label(ctx, id, "", tpl); err != nil {
			return nil, err
		}
	}
	return render.Sheet(labels, *tpl, opts), nil
}

type exportFile struct {
	name string
	body []byte
}

// ExportZIP renders tagIDs as svg or png files into a zip archive written to
// w. Rendering runs on ExportWorkers goroutines; entries keep the order of
// tagIDs.
func (s *Service) ExportZIP(ctx context.Context, w io.Writer, tagIDs []int64, format string, scale float64) error {
	format = strings.ToLower(format)
	if format == "" {
		format = "svg"
	}
	if format != "svg" && format != "png" {
		return ErrBadFormat
	}

	files := make([]exportFile, len(tagIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ExportWorkers)

	for i, id := range tagIDs {
		g.Go(func() error {
			svg, tpl, err := s.label(gctx, id, "", nil)
			if err != nil {
				return fmt.Errorf("tag %d: %w", id, err)
			}
			tag, err := database.GetAssetTag(gctx, s.db, id)
			if err != nil {
				return err
			}

			body := []byte(svg)
			if format == "png" {
				if body, err = s.rasterize(gctx, svg, tpl, scale); err != nil {
					return fmt.Errorf("tag %d: %w", id, err)
				}
			}
			files[i] = exportFile{name: fileName(tag.PrintedCode), body: body}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	used := make(map[string]int, len(files))
	for i, f := range files {
		name := f.name
		if used[name] > 0 {
			name = fmt.Sprintf("%s-%d", name, tagIDs[i])
		}
		used[f.name]++

		fw, err := zw.Create(name + "." + format)
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := fw.Write(f.body); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	zap.S().Infof("Exported %d labels as %s", len(files), format)
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func fileName(code string) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(code, "_"), "._")
	if name == "" {
		return "label"
	}
	return name
}

func (s *Service) entityOrNil(ctx context.Context, tag *model.AssetTag) interface{} {
	e, err := loadEntity(ctx, s.db, tag.CompanyID, tag.EntityType, tag.EntityID)
	if err != nil {
		zap.S().Warnf("Asset tag %d: %v (rendering without entity fields)", tag.ID, err)
		return nil
	}
	return e
}

func loadEntity(ctx context.Context, db sqlx.ExtContext, companyID int64, entity model.EntityType, id int64) (interface{}, error) {
	var (
		e   interface{}
		err error
	)
	switch entity {
	case model.EntityEquipment:
		e, err = database.GetEquipment(ctx, db, companyID, id)
	case model.EntityArticle:
		e, err = database.GetArticle(ctx, db, companyID, id)
	case model.EntityLocation:
		e, err = database.GetLocation(ctx, db, companyID, id)
	default:
		return nil, fmt.Errorf("unsupported entity type %q", entity)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// resolveTemplate returns templateID when it belongs to the company, else the
// company default. ErrNoTemplate means the company has none.
func resolveTemplate(ctx context.Context, db sqlx.ExtContext, companyID int64, templateID string) (*model.TagTemplate, error) {
	if templateID != "" {
		tpl, err := database.GetTemplate(ctx, db, templateID)
		if err != nil {
			return nil, err
		}
		if tpl.CompanyID != companyID {
			return nil, fmt.Errorf("template %s (company %d): %w", templateID, companyID, database.ErrNotFound)
		}
		return tpl, nil
	}
	tpl, err := database.GetDefaultTemplate(ctx, db, companyID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("company %d: %w", companyID, ErrNoTemplate)
	}
	return tpl, err
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	b, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			zap.S().Warnf("Cache read failed: %v", err)
		}
		return nil, false
	}
	return b, true
}

func (s *Service) cacheSet(ctx context.Context, key string, val []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, val, s.opts.CacheTTL); err != nil {
		zap.S().Warnf("Cache write failed: %v", err)
	}
}
