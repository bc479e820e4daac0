package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"kitstock/model"

	"github.com/jmoiron/sqlx"
)

func getOne(ctx context.Context, db sqlx.ExtContext, dest interface{}, what string, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, db, dest, db.Rebind(query), args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return fmt.Errorf("failed to get %s: %w", what, err)
	}
	return nil
}

func GetEquipment(ctx context.Context, db sqlx.ExtContext, companyID, id int64) (*model.Equipment, error) {
	var e model.Equipment
	const q = `SELECT id, company_id, name, serial_number, manufacturer, model FROM equipment WHERE company_id = ? AND id = ?`
	if err := getOne(ctx, db, &e, fmt.Sprintf("equipment %d", id), q, companyID, id); err != nil {
		return nil, err
	}
	return &e, nil
}

func GetArticle(ctx context.Context, db sqlx.ExtContext, companyID, id int64) (*model.Article, error) {
	var a model.Article
	const q = `SELECT id, company_id, name, manufacturer, category FROM articles WHERE company_id = ? AND id = ?`
	if err := getOne(ctx, db, &a, fmt.Sprintf("article %d", id), q, companyID, id); err != nil {
		return nil, err
	}
	return &a, nil
}

func GetLocation(ctx context.Context, db sqlx.ExtContext, companyID, id int64) (*model.Location, error) {
	var l model.Location
	const q = `SELECT id, company_id, name, address FROM locations WHERE company_id = ? AND id = ?`
	if err := getOne(ctx, db, &l, fmt.Sprintf("location %d", id), q, companyID, id); err != nil {
		return nil, err
	}
	return &l, nil
}

// UpsertEquipmentInTx inserts a row, or updates it when e.ID is set and
// already exists. The stored id is returned. An id owned by another company
// is left untouched and reported as ErrOtherCompany.
func UpsertEquipmentInTx(ctx context.Context, tx *sqlx.Tx, e model.Equipment) (int64, error) {
	if e.ID == 0 {
		const q = `INSERT INTO equipment (company_id, name, serial_number, manufacturer, model) VALUES (?, ?, ?, ?, ?) RETURNING id`
		return insertReturningID(ctx, tx, "equipment", q, e.CompanyID, e.Name, e.SerialNumber, e.Manufacturer, e.Model)
	}
	const q = `
		INSERT INTO equipment (id, company_id, name, serial_number, manufacturer, model)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			serial_number = excluded.serial_number,
			manufacturer = excluded.manufacturer,
			model = excluded.model
		WHERE equipment.company_id = excluded.company_id
	`
	res, err := tx.ExecContext(ctx, tx.Rebind(q), e.ID, e.CompanyID, e.Name, e.SerialNumber, e.Manufacturer, e.Model)
	if err != nil {
		return 0, fmt.Errorf("UpsertEquipmentInTx (ID: %d, Name: %s) failed: %w", e.ID, e.Name, err)
	}
	return e.ID, requireOwned(res, "equipment", e.ID, e.CompanyID)
}

func UpsertArticleInTx(ctx context.Context, tx *sqlx.Tx, a model.Article) (int64, error) {
	if a.ID == 0 {
		const q = `INSERT INTO articles (company_id, name, manufacturer, category) VALUES (?, ?, ?, ?) RETURNING id`
		return insertReturningID(ctx, tx, "article", q, a.CompanyID, a.Name, a.Manufacturer, a.Category)
	}
	const q = `
		INSERT INTO articles (id, company_id, name, manufacturer, category)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			manufacturer = excluded.manufacturer,
			category = excluded.category
		WHERE articles.company_id = excluded.company_id
	`
	res, err := tx.ExecContext(ctx, tx.Rebind(q), a.ID, a.CompanyID, a.Name, a.Manufacturer, a.Category)
	if err != nil {
		return 0, fmt.Errorf("UpsertArticleInTx (ID: %d, Name: %s) failed: %w", a.ID, a.Name, err)
	}
	return a.ID, requireOwned(res, "article", a.ID, a.CompanyID)
}

func UpsertLocationInTx(ctx context.Context, tx *sqlx.Tx, l model.Location) (int64, error) {
	if l.ID == 0 {
		const q = `INSERT INTO locations (company_id, name, address) VALUES (?, ?, ?) RETURNING id`
		return insertReturningID(ctx, tx, "location", q, l.CompanyID, l.Name, l.Address)
	}
	const q = `
		INSERT INTO locations (id, company_id, name, address)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address
		WHERE locations.company_id = excluded.company_id
	`
	res, err := tx.ExecContext(ctx, tx.Rebind(q), l.ID, l.CompanyID, l.Name, l.Address)
	if err != nil {
		return 0, fmt.Errorf("UpsertLocationInTx (ID: %d, Name: %s) failed: %w", l.ID, l.Name, err)
	}
	return l.ID, requireOwned(res, "location", l.ID, l.CompanyID)
}

// requireOwned turns an upsert that matched a row of another company (and so
// changed nothing) into ErrOtherCompany.
func requireOwned(res sql.Result, what string, id, companyID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check %s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d (company %d): %w", what, id, companyID, ErrOtherCompany)
	}
	return nil
}

var entityTables = map[model.EntityType]string{
	model.EntityEquipment: "equipment",
	model.EntityArticle:   "articles",
	model.EntityLocation:  "locations",
}

// SyncEntityIDSequenceInTx moves the Postgres serial behind an entity table's
// id past the highest stored id, so rows inserted without an id do not
// collide with ones imported with an explicit id. sqlite needs nothing.
func SyncEntityIDSequenceInTx(ctx context.Context, tx *sqlx.Tx, entity model.EntityType) error {
	if tx.DriverName() == "sqlite3" {
		return nil
	}
	table, ok := entityTables[entity]
	if !ok {
		return fmt.Errorf("unsupported entity type %q", entity)
	}
	q := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 0) + 1, false)`, table)
	if _, err := tx.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to sync %s id sequence: %w", table, err)
	}
	return nil
}

func insertReturningID(ctx context.Context, db sqlx.ExtContext, what, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := db.QueryRowxContext(ctx, db.Rebind(query), args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert %s: %w", what, err)
	}
	return id, nil
}
