package database

import (
	"context"
	"fmt"
	"kitstock/model"

	"github.com/jmoiron/sqlx"
)

const assetTagColumns = `id, company_id, entity_type, entity_id, template_id, sequence_no, printed_code, created_at`

// CreateAssetTagInTx stores tag and fills in its id. A printed code that is
// already taken within the company yields ErrDuplicateCode.
func CreateAssetTagInTx(ctx context.Context, tx *sqlx.Tx, tag *model.AssetTag) error {
	const q = `
		INSERT INTO asset_tags (company_id, entity_type, entity_id, template_id, sequence_no, printed_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := tx.QueryRowxContext(ctx, tx.Rebind(q), tag.CompanyID, string(tag.EntityType), tag.EntityID,
		tag.TemplateID, tag.Sequence, tag.PrintedCode, tag.CreatedAt).Scan(&tag.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("asset tag %q (company %d): %w", tag.PrintedCode, tag.CompanyID, ErrDuplicateCode)
		}
		return fmt.Errorf("CreateAssetTagInTx (Code: %s) failed: %w", tag.PrintedCode, err)
	}
	return nil
}

func GetAssetTag(ctx context.Context, db sqlx.ExtContext, id int64) (*model.AssetTag, error) {
	var t model.AssetTag
	if err := getOne(ctx, db, &t, fmt.Sprintf("asset tag %d", id),
		`SELECT `+assetTagColumns+` FROM asset_tags WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func GetAssetTagByCode(ctx context.Context, db sqlx.ExtContext, companyID int64, code string) (*model.AssetTag, error) {
	var t model.AssetTag
	if err := getOne(ctx, db, &t, fmt.Sprintf("asset tag %q", code),
		`SELECT `+assetTagColumns+` FROM asset_tags WHERE company_id = ? AND printed_code = ?`, companyID, code); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListAssetTags returns the company's tags, optionally restricted to one
// entity type, newest first.
func ListAssetTags(ctx context.Context, db sqlx.ExtContext, companyID int64, entity model.EntityType) ([]model.AssetTag, error) {
	q := `SELECT ` + assetTagColumns + ` FROM asset_tags WHERE company_id = ?`
	args := []interface{}{companyID}
	if entity != "" {
		q += ` AND entity_type = ?`
		args = append(args, string(entity))
	}
	q += ` ORDER BY id DESC`

	tags := []model.AssetTag{}
	if err := sqlx.SelectContext(ctx, db, &tags, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to list asset tags for company %d: %w", companyID, err)
	}
	return tags, nil
}

func ListAssetTagsForEntity(ctx context.Context, db sqlx.ExtContext, companyID int64, entity model.EntityType, entityID int64) ([]model.AssetTag, error) {
	tags := []model.AssetTag{}
	err := sqlx.SelectContext(ctx, db, &tags,
		db.Rebind(`SELECT `+assetTagColumns+` FROM asset_tags WHERE company_id = ? AND entity_type = ? AND entity_id = ? ORDER BY id`),
		companyID, string(entity), entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset tags for %s %d: %w", entity, entityID, err)
	}
	return tags, nil
}

func DeleteAssetTag(ctx context.Context, db sqlx.ExtContext, id int64) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM asset_tags WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete asset tag %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("asset tag %d", id))
}
