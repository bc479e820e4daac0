package loader

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"kitstock/database"
	"kitstock/model"
	"kitstock/parsers"
)

var (
	//go:embed schema_sqlite.sql
	sqliteSchema string
	//go:embed schema_postgres.sql
	postgresSchema string
)

const (
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"
)

// InitDatabase applies the schema for the connection's driver and raises
// every numbering sequence to the highest number already printed.
func InitDatabase(ctx context.Context, db *sqlx.DB) error {
	zap.S().Infof("Applying database schema (%s)...", db.DriverName())
	if err := applySchema(ctx, db); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	zap.S().Info("Schema applied successfully.")

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for sequence initialization: %w", err)
	}
	defer tx.Rollback()

	if err := database.InitializeAllSequences(ctx, tx); err != nil {
		zap.S().Warnf("Failed to initialize asset tag sequences: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sequence initialization: %w", err)
	}
	zap.S().Info("Asset tag sequences initialized.")
	return nil
}

func schemaFor(driver string) (string, error) {
	switch driver {
	case "sqlite3":
		return sqliteSchema, nil
	case "pgx", "postgres":
		return postgresSchema, nil
	}
	return "", fmt.Errorf("no schema for driver %q", driver)
}

// applySchema runs the statements one at a time; not every driver accepts a
// multi-statement Exec.
func applySchema(ctx context.Context, db *sqlx.DB) error {
	schema, err := schemaFor(db.DriverName())
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// decodeReader wraps r so it yields UTF-8. An empty encoding means UTF-8.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.ReplaceAll(encoding, "-", "_")) {
	case "", "utf_8", "utf8":
		return r, nil
	case "shift_jis", "sjis", "shiftjis", "cp932":
		return transform.NewReader(r, japanese.ShiftJIS.NewDecoder()), nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", encoding)
}

// ImportEntitiesCSV loads equipment, articles or locations for a company from
// CSV in one transaction and returns how many rows were stored. Rows the
// parser rejects and ids owned by another company are skipped; any database
// failure rolls everything back.
func ImportEntitiesCSV(ctx context.Context, db *sqlx.DB, entity model.EntityType, companyID int64, r io.Reader, encoding string) (n int, err error) {
	if _, err := database.GetCompany(ctx, db, companyID); err != nil {
		return 0, err
	}

	decoded, err := decodeReader(r, encoding)
	if err != nil {
		return 0, err
	}
	records, err := parsers.ParseEntityCSV(decoded, entity)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s CSV: %w", entity, err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	explicitIDs := false
	for _, rec := range records {
		_, err = upsertRecord(ctx, tx, entity, companyID, rec)
		if errors.Is(err, database.ErrOtherCompany) {
			zap.S().Warnf("Skipping %s CSV line %d: %v", entity, rec.Line, err)
			err = nil
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", rec.Line, err)
		}
		explicitIDs = explicitIDs || rec.ID != 0
		n++
	}
	if explicitIDs {
		if err = database.SyncEntityIDSequenceInTx(ctx, tx, entity); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s import: %w", entity, err)
	}
	zap.S().Infof("Imported %d %s rows for company %d", n, entity, companyID)
	return n, nil
}

func upsertRecord(ctx context.Context, tx *sqlx.Tx, entity model.EntityType, companyID int64, rec parsers.EntityRecord) (int64, error) {
	switch entity {
	case model.EntityEquipment:
		return database.UpsertEquipmentInTx(ctx, tx, model.Equipment{
			ID:           rec.ID,
			CompanyID:    companyID,
			Name:         rec.Name,
			SerialNumber: rec.Fields["serial_number"],
			Manufacturer: rec.Fields["manufacturer"],
			Model:        rec.Fields["model"],
		})
	case model.EntityArticle:
		return database.UpsertArticleInTx(ctx, tx, model.Article{
			ID:           rec.ID,
			CompanyID:    companyID,
			Name:         rec.Name,
			Manufacturer: rec.Fields["manufacturer"],
			Category:     rec.Fields["category"],
		})
	case model.EntityLocation:
		return database.UpsertLocationInTx(ctx, tx, model.Location{
			ID:        rec.ID,
			CompanyID: companyID,
			Name:      rec.Name,
			Address:   rec.Fields["address"],
		})
	}
	return 0, fmt.Errorf("unsupported entity type %q", entity)
}
