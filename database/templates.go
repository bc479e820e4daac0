package database

import (
	"context"
	"fmt"
	"kitstock/model"

	"github.com/jmoiron/sqlx"
)

const templateColumns = `id, company_id, name, width_mm, height_mm, margin_mm, background_color, text_color,
	border_color, border_width_mm, font_family, prefix, suffix, string_template, code_digits, is_default, elements`

func ListTemplates(ctx context.Context, db sqlx.ExtContext, companyID int64) ([]model.TagTemplate, error) {
	templates := []model.TagTemplate{}
	err := sqlx.SelectContext(ctx, db, &templates,
		db.Rebind(`SELECT `+templateColumns+` FROM tag_templates WHERE company_id = ? ORDER BY name, id`), companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates for company %d: %w", companyID, err)
	}
	return templates, nil
}

func GetTemplate(ctx context.Context, db sqlx.ExtContext, id string) (*model.TagTemplate, error) {
	var t model.TagTemplate
	if err := getOne(ctx, db, &t, fmt.Sprintf("template %s", id),
		`SELECT `+templateColumns+` FROM tag_templates WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetDefaultTemplate returns the company's default template, or the oldest
// one by name when none is flagged.
func GetDefaultTemplate(ctx context.Context, db sqlx.ExtContext, companyID int64) (*model.TagTemplate, error) {
	var t model.TagTemplate
	if err := getOne(ctx, db, &t, fmt.Sprintf("default template for company %d", companyID),
		`SELECT `+templateColumns+` FROM tag_templates WHERE company_id = ? ORDER BY is_default DESC, name, id LIMIT 1`,
		companyID); err != nil {
		return nil, err
	}
	return &t, nil
}

func CreateTemplateInTx(ctx context.Context, tx *sqlx.Tx, t model.TagTemplate) error {
	if t.IsDefault {
		if err := clearDefault(ctx, tx, t.CompanyID, t.ID); err != nil {
			return err
		}
	}
	const q = `
		INSERT INTO tag_templates (` + templateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, tx.Rebind(q), templateArgs(t)...)
	if err != nil {
		return fmt.Errorf("CreateTemplateInTx (ID: %s, Name: %s) failed: %w", t.ID, t.Name, err)
	}
	return nil
}

func UpdateTemplateInTx(ctx context.Context, tx *sqlx.Tx, t model.TagTemplate) error {
	if t.IsDefault {
		if err := clearDefault(ctx, tx, t.CompanyID, t.ID); err != nil {
			return err
		}
	}
	const q = `
		UPDATE tag_templates SET
			company_id = ?, name = ?, width_mm = ?, height_mm = ?, margin_mm = ?, background_color = ?,
			text_color = ?, border_color = ?, border_width_mm = ?, font_family = ?, prefix = ?, suffix = ?,
			string_template = ?, code_digits = ?, is_default = ?, elements = ?
		WHERE id = ?
	`
	args := append(templateArgs(t)[1:], t.ID)
	res, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
	if err != nil {
		return fmt.Errorf("UpdateTemplateInTx (ID: %s) failed: %w", t.ID, err)
	}
	return requireAffected(res, fmt.Sprintf("template %s", t.ID))
}

func DeleteTemplate(ctx context.Context, db sqlx.ExtContext, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM tag_templates WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete template %s: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("template %s", id))
}

func clearDefault(ctx context.Context, tx *sqlx.Tx, companyID int64, keepID string) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE tag_templates SET is_default = ? WHERE company_id = ? AND id <> ?`),
		false, companyID, keepID)
	if err != nil {
		return fmt.Errorf("failed to clear default template for company %d: %w", companyID, err)
	}
	return nil
}

func templateArgs(t model.TagTemplate) []interface{} {
	return []interface{}{
		t.ID, t.CompanyID, t.Name, t.WidthMM, t.HeightMM, t.MarginMM, t.BackgroundColor, t.TextColor,
		t.BorderColor, t.BorderWidthMM, t.FontFamily, t.Prefix, t.Suffix, t.StringTemplate, t.CodeDigits,
		t.IsDefault, t.Elements,
	}
}
