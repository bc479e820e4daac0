package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitstock/model"
)

func newMock(t *testing.T, driver string) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, driver), mock
}

func TestGetCompany(t *testing.T) {
	db, mock := newMock(t, "sqlite3")

	rows := sqlmock.NewRows([]string{"id", "name", "asset_tag_prefix", "equipment_prefix", "article_prefix", "location_prefix", "asset_tag_digits"}).
		AddRow(1, "Acme", "ACME", "EQ", "AR", "LO", 5)
	mock.ExpectQuery(regexp.QuoteMeta("FROM companies WHERE id = ?")).WithArgs(int64(1)).WillReturnRows(rows)

	c, err := GetCompany(context.Background(), db, 1)
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Name)
	assert.Equal(t, "ACME", c.CompanyPrefix)
	assert.Equal(t, "EQ", c.EntityPrefix(model.EntityEquipment))
	assert.Equal(t, 5, c.CodeDigits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCompanyNotFound(t *testing.T) {
	db, mock := newMock(t, "sqlite3")
	mock.ExpectQuery(regexp.QuoteMeta("FROM companies WHERE id = ?")).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := GetCompany(context.Background(), db, 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresPlaceholdersAreRebound(t *testing.T) {
	for _, driver := range []string{"pgx", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			db, mock := newMock(t, driver)
			mock.ExpectQuery(regexp.QuoteMeta("FROM asset_tags WHERE company_id = $1 AND printed_code = $2")).
				WithArgs(int64(3), "EQ-1").
				WillReturnRows(sqlmock.NewRows([]string{"id"}))

			_, err := GetAssetTagByCode(context.Background(), db, 3, "EQ-1")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdateAssetTagMetaMissingCompany(t *testing.T) {
	db, mock := newMock(t, "sqlite3")
	mock.ExpectExec(regexp.QuoteMeta("UPDATE companies SET")).
		WithArgs("A", "E", "R", "L", 4, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := UpdateAssetTagMeta(context.Background(), db, 7, model.AssetTagMeta{
		CompanyPrefix: "A", EquipmentPrefix: "E", ArticlePrefix: "R", LocationPrefix: "L", CodeDigits: 4,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNextAssetTagNumberInTx(t *testing.T) {
	db, mock := newMock(t, "sqlite3")
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO asset_tag_sequences")).
		WithArgs(int64(1), "equipment").
		WillReturnRows(sqlmock.NewRows([]string{"last_no"}).AddRow(12))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.Beginx()
	require.NoError(t, err)
	n, err := NextAssetTagNumberInTx(ctx, tx, 1, model.EntityEquipment)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssetTagDuplicate(t *testing.T) {
	db, mock := newMock(t, "sqlite3")
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO asset_tags")).
		WillReturnError(errors.New("UNIQUE constraint failed: asset_tags.company_id, asset_tags.printed_code"))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	tag := &model.AssetTag{CompanyID: 1, EntityType: model.EntityEquipment, EntityID: 2, PrintedCode: "EQ-1", CreatedAt: time.Now()}
	err = CreateAssetTagInTx(context.Background(), tx, tag)
	assert.ErrorIs(t, err, ErrDuplicateCode)
	require.NoError(t, tx.Rollback())
}

func TestListAssetTagsFiltersByEntity(t *testing.T) {
	db, mock := newMock(t, "sqlite3")
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "company_id", "entity_type", "entity_id", "template_id", "sequence_no", "printed_code", "created_at"}).
		AddRow(5, 1, "article", 9, "", 2, "AR-2", created).
		AddRow(4, 1, "article", 8, "", 1, "AR-1", created)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE company_id = ? AND entity_type = ? ORDER BY id DESC")).
		WithArgs(int64(1), "article").
		WillReturnRows(rows)

	tags, err := ListAssetTags(context.Background(), db, 1, model.EntityArticle)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "AR-2", tags[0].PrintedCode)
	assert.Equal(t, model.EntityArticle, tags[1].EntityType)
	assert.Equal(t, created, tags[0].CreatedAt)
}

func TestDeleteTemplateNotFound(t *testing.T) {
	db, mock := newMock(t, "sqlite3")
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tag_templates WHERE id = ?")).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, DeleteTemplate(context.Background(), db, "nope"), ErrNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: x")))
	assert.True(t, isUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "x" (SQLSTATE 23505)`)))
	assert.True(t, isUniqueViolation(errors.New(`pq: duplicate key value violates unique constraint "x"`)))
	assert.False(t, isUniqueViolation(errors.New("no such table")))
	assert.False(t, isUniqueViolation(nil))
}

func TestElementsScan(t *testing.T) {
	var e model.Elements
	require.NoError(t, e.Scan(`[{"type":"text","value":"{name}","x":1}]`))
	require.Len(t, e, 1)
	assert.Equal(t, "{name}", e[0].Value)

	require.NoError(t, e.Scan(nil))
	assert.Nil(t, e)

	v, err := model.Elements(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestPeekAssetTagNumber(t *testing.T) {
	db, mock := newMock(t, "pgx")
	mock.ExpectQuery(regexp.QuoteMeta("FROM asset_tag_sequences WHERE company_id = $1 AND entity_type = $2")).
		WithArgs(int64(2), "location").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))

	n, err := PeekAssetTagNumber(context.Background(), db, 2, model.EntityLocation)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEquipmentOwnedByOtherCompany(t *testing.T) {
	db, mock := newMock(t, "sqlite3")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE equipment.company_id = excluded.company_id")).
		WithArgs(int64(10), int64(2), "Hijacked", "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	_, err = UpsertEquipmentInTx(context.Background(), tx, model.Equipment{ID: 10, CompanyID: 2, Name: "Hijacked"})
	assert.ErrorIs(t, err, ErrOtherCompany)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncEntityIDSequenceInTx(t *testing.T) {
	ctx := context.Background()

	db, mock := newMock(t, "pgx")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT setval(pg_get_serial_sequence('articles', 'id'), COALESCE((SELECT MAX(id) FROM articles), 0) + 1, false)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, SyncEntityIDSequenceInTx(ctx, tx, model.EntityArticle))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())

	// sqlite keeps AUTOINCREMENT ahead of explicit ids by itself
	db, mock = newMock(t, "sqlite3")
	mock.ExpectBegin()
	mock.ExpectCommit()
	tx, err = db.Beginx()
	require.NoError(t, err)
	require.NoError(t, SyncEntityIDSequenceInTx(ctx, tx, model.EntityArticle))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
