package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kitstock/loader"
	"kitstock/model"
	"kitstock/render"
	"kitstock/tagcode"
	"kitstock/tagtemplate"
	"kitstock/units"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a YAML label template to SVG (or PNG)",
	Long: `Fills a label template with key=value data and writes the result.

Example:
  kitstock render --template small.yaml --data code=AC-EQ-00042 --data name=Mixer --out tag.svg`,
	RunE: runRender,
}

var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Print the asset tag code for an entity id",
	Long: `Builds a printed code from prefixes, an optional template and an id.

Example:
  kitstock code --company-prefix AC --entity-prefix EQ --entity equipment --id 42`,
	RunE: runCode,
}

var importCmd = &cobra.Command{
	Use:   "import [file.csv]",
	Short: "Import equipment, articles or locations from CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	f := renderCmd.Flags()
	f.String("template", "", "template YAML file (required)")
	f.StringToString("data", nil, "placeholder values as key=value")
	f.String("out", "", "output file (default stdout)")
	f.Bool("png", false, "rasterize to PNG with the headless browser")
	f.Float64("scale", 0, "PNG device scale (default render.scale)")
	renderCmd.MarkFlagRequired("template")

	f = codeCmd.Flags()
	f.String("company-prefix", "", "company prefix")
	f.String("entity-prefix", "", "prefix of the entity type")
	f.Int("digits", 0, "zero-padding width used by {code}")
	f.String("entity", "equipment", "equipment, article or location")
	f.Int64("id", 0, "entity id or sequence number (required)")
	f.String("template", "", "template YAML file with a string_template")
	codeCmd.MarkFlagRequired("id")

	f = importCmd.Flags()
	f.String("entity", "", "equipment, article or location (required)")
	f.Int64("company", 0, "company id (required)")
	f.String("encoding", loader.EncodingUTF8, "utf-8 or shift_jis")
	importCmd.MarkFlagRequired("entity")
	importCmd.MarkFlagRequired("company")
}

func loadTemplateFile(path string) (model.TagTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.TagTemplate{}, fmt.Errorf("could not open template %s: %w", path, err)
	}
	defer f.Close()
	return tagtemplate.LoadYAML(f)
}

func outputWriter(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func runRender(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("template")
	data, _ := cmd.Flags().GetStringToString("data")
	out, _ := cmd.Flags().GetString("out")
	asPNG, _ := cmd.Flags().GetBool("png")
	scale, _ := cmd.Flags().GetFloat64("scale")

	tpl, err := loadTemplateFile(path)
	if err != nil {
		return err
	}
	if tpl.Name == "" {
		tpl.Name = path
	}
	if err := tagtemplate.Validate(tpl); err != nil {
		return err
	}

	body := []byte(render.GenerateSVG(tpl, data))
	if asPNG {
		if scale <= 0 {
			scale = cfg.Render.Scale
		}
		rz := newRasterizer()
		defer rz.Close()
		body, err = rz.RasterizePNG(cmd.Context(), string(body), units.MMToPX(tpl.WidthMM), units.MMToPX(tpl.HeightMM), scale)
		if err != nil {
			return err
		}
	}

	w, err := outputWriter(out)
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if out != "" {
		zap.S().Infof("Wrote %s (%d bytes)", out, len(body))
	}
	return nil
}

func runCode(cmd *cobra.Command, args []string) error {
	fl := cmd.Flags()
	companyPrefix, _ := fl.GetString("company-prefix")
	entityPrefix, _ := fl.GetString("entity-prefix")
	digits, _ := fl.GetInt("digits")
	entityName, _ := fl.GetString("entity")
	id, _ := fl.GetInt64("id")
	tplPath, _ := fl.GetString("template")

	entity, err := model.ParseEntityType(entityName)
	if err != nil {
		return err
	}
	meta := model.AssetTagMeta{CompanyPrefix: companyPrefix, CodeDigits: digits}
	switch entity {
	case model.EntityEquipment:
		meta.EquipmentPrefix = entityPrefix
	case model.EntityArticle:
		meta.ArticlePrefix = entityPrefix
	case model.EntityLocation:
		meta.LocationPrefix = entityPrefix
	}

	var tpl *model.TagTemplate
	if tplPath != "" {
		t, err := loadTemplateFile(tplPath)
		if err != nil {
			return err
		}
		if err := tagcode.Validate(t.StringTemplate); err != nil {
			return err
		}
		tpl = &t
	}

	fmt.Fprintln(cmd.OutOrStdout(), tagcode.BuildAssetTagCode(meta, entity, id, tpl))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	fl := cmd.Flags()
	entityName, _ := fl.GetString("entity")
	companyID, _ := fl.GetInt64("company")
	encoding, _ := fl.GetString("encoding")

	entity, err := model.ParseEntityType(entityName)
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("could not open file %s: %w", args[0], err)
	}
	defer f.Close()

	ctx := cmd.Context()
	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := loader.ImportEntitiesCSV(ctx, db, entity, companyID, f, encoding)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s rows imported\n", n, entity)
	return nil
}
