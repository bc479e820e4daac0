package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"kitstock/model"

	"github.com/jmoiron/sqlx"
)

const companyColumns = `id, name, asset_tag_prefix, equipment_prefix, article_prefix, location_prefix, asset_tag_digits`

func ListCompanies(ctx context.Context, db sqlx.ExtContext) ([]model.Company, error) {
	var companies []model.Company
	err := sqlx.SelectContext(ctx, db, &companies, `SELECT `+companyColumns+` FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all companies: %w", err)
	}
	return companies, nil
}

func GetCompany(ctx context.Context, db sqlx.ExtContext, id int64) (*model.Company, error) {
	var c model.Company
	err := sqlx.GetContext(ctx, db, &c, db.Rebind(`SELECT `+companyColumns+` FROM companies WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get company %d: %w", id, err)
	}
	return &c, nil
}

// UpsertCompany inserts the company or replaces its name and tag settings.
func UpsertCompany(ctx context.Context, db sqlx.ExtContext, c model.Company) error {
	const q = `
		INSERT INTO companies (id, name, asset_tag_prefix, equipment_prefix, article_prefix, location_prefix, asset_tag_digits)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			asset_tag_prefix = excluded.asset_tag_prefix,
			equipment_prefix = excluded.equipment_prefix,
			article_prefix = excluded.article_prefix,
			location_prefix = excluded.location_prefix,
			asset_tag_digits = excluded.asset_tag_digits
	`
	_, err := db.ExecContext(ctx, db.Rebind(q), c.ID, c.Name, c.CompanyPrefix, c.EquipmentPrefix,
		c.ArticlePrefix, c.LocationPrefix, c.CodeDigits)
	if err != nil {
		return fmt.Errorf("UpsertCompany (ID: %d, Name: %s) failed: %w", c.ID, c.Name, err)
	}
	return nil
}

func UpdateAssetTagMeta(ctx context.Context, db sqlx.ExtContext, companyID int64, meta model.AssetTagMeta) error {
	const q = `
		UPDATE companies SET
			asset_tag_prefix = ?, equipment_prefix = ?, article_prefix = ?, location_prefix = ?, asset_tag_digits = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, db.Rebind(q), meta.CompanyPrefix, meta.EquipmentPrefix,
		meta.ArticlePrefix, meta.LocationPrefix, meta.CodeDigits, companyID)
	if err != nil {
		return fmt.Errorf("failed to update asset tag settings for company %d: %w", companyID, err)
	}
	return requireAffected(res, fmt.Sprintf("company %d", companyID))
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
