package database

import (
	"context"
	"fmt"
	"kitstock/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// NextAssetTagNumberInTx advances and returns the per-company counter for
// entity, creating it at 1 on first use.
func NextAssetTagNumberInTx(ctx context.Context, tx *sqlx.Tx, companyID int64, entity model.EntityType) (int64, error) {
	const q = `
		INSERT INTO asset_tag_sequences (company_id, entity_type, last_no) VALUES (?, ?, 1)
		ON CONFLICT(company_id, entity_type) DO UPDATE SET
			last_no = asset_tag_sequences.last_no + 1
		RETURNING last_no
	`
	var next int64
	if err := tx.QueryRowxContext(ctx, tx.Rebind(q), companyID, string(entity)).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to advance sequence (company %d, %s): %w", companyID, entity, err)
	}
	return next, nil
}

// InitializeSequenceFromMaxTag raises the counter to the highest sequence
// already used by a stored tag. It never lowers it.
func InitializeSequenceFromMaxTag(ctx context.Context, tx *sqlx.Tx, companyID int64, entity model.EntityType) error {
	var maxNo int64
	err := tx.GetContext(ctx, &maxNo,
		tx.Rebind(`SELECT COALESCE(MAX(sequence_no), 0) FROM asset_tags WHERE company_id = ? AND entity_type = ?`),
		companyID, string(entity))
	if err != nil {
		return fmt.Errorf("failed to read max sequence (company %d, %s): %w", companyID, entity, err)
	}

	zap.S().Infof("[Sequence] Setting company %d '%s' last_no to at least %d", companyID, entity, maxNo)

	const q = `
		INSERT INTO asset_tag_sequences (company_id, entity_type, last_no) VALUES (?, ?, ?)
		ON CONFLICT(company_id, entity_type) DO UPDATE SET
			last_no = CASE WHEN excluded.last_no > asset_tag_sequences.last_no
				THEN excluded.last_no ELSE asset_tag_sequences.last_no END
	`
	_, err = tx.ExecContext(ctx, tx.Rebind(q), companyID, string(entity), maxNo)
	return err
}

// InitializeAllSequences runs InitializeSequenceFromMaxTag for every
// company/entity pair that has tags.
func InitializeAllSequences(ctx context.Context, tx *sqlx.Tx) error {
	var pairs []struct {
		CompanyID  int64  `db:"company_id"`
		EntityType string `db:"entity_type"`
	}
	if err := tx.SelectContext(ctx, &pairs, `SELECT DISTINCT company_id, entity_type FROM asset_tags ORDER BY company_id, entity_type`); err != nil {
		return fmt.Errorf("failed to list tag sequences: %w", err)
	}
	for _, p := range pairs {
		if err := InitializeSequenceFromMaxTag(ctx, tx, p.CompanyID, model.EntityType(p.EntityType)); err != nil {
			return err
		}
	}
	return nil
}

// PeekAssetTagNumber returns the number NextAssetTagNumberInTx would hand out
// without consuming it.
func PeekAssetTagNumber(ctx context.Context, db sqlx.ExtContext, companyID int64, entity model.EntityType) (int64, error) {
	var last int64
	err := sqlx.GetContext(ctx, db, &last,
		db.Rebind(`SELECT COALESCE(MAX(last_no), 0) FROM asset_tag_sequences WHERE company_id = ? AND entity_type = ?`),
		companyID, string(entity))
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence (company %d, %s): %w", companyID, entity, err)
	}
	return last + 1, nil
}
