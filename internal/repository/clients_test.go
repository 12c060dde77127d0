package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return sqlx.NewDb(db, "mysql"), mock
}

func TestCountByEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM clients WHERE email = ?`)).
		WithArgs("chris@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := repo.CountByEmail(context.Background(), "chris@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_WritesClientAndAttributes(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO clients (email, phone) VALUES (?, ?)`)).
		WithArgs("chris@example.com", "c5681b5d18628136ee7d47d26d").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM clients WHERE email = ?`)).
		WithArgs("chris@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO client_meta (client_id, meta_key, meta_value) VALUES (?, ?, ?)`))
	prep.ExpectExec().WithArgs(int64(42), "field1", "value1").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(42), "field2", "value2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.Insert(context.Background(), nil, "chris@example.com", "c5681b5d18628136ee7d47d26d",
		map[string]string{"field2": "value2", "field1": "value1"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_NoAttributes(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO clients`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT id FROM clients`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	id, err := repo.Insert(context.Background(), nil, "chris@example.com", "aa", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_RollsBackOnFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO clients`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Insert(context.Background(), nil, "chris@example.com", "aa", map[string]string{"k": "v"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert client")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_UsesGivenTx(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO clients`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT id FROM clients`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	tx, err := db.Beginx()
	require.NoError(t, err)

	id, err := repo.Insert(context.Background(), tx, "chris@example.com", "aa", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	// the caller owns commit/rollback
	mock.ExpectRollback()
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectQuery(`SELECT id, email, phone\s+FROM clients\s+WHERE id = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "phone"}).
			AddRow(1, "chris@example.com", "c26f0b4c1b638622fb7e46dd"))

	row, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(1), row.ID)
	assert.Equal(t, "chris@example.com", row.Email)
	assert.Equal(t, "c26f0b4c1b638622fb7e46dd", row.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectQuery(`FROM clients`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "phone"}))

	row, err := repo.GetByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestGetByID_Error(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectQuery(`FROM clients`).WillReturnError(errors.New("connection reset"))

	row, err := repo.GetByID(context.Background(), 1)
	require.Error(t, err)
	assert.Nil(t, row)
}

func TestSearch_All(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, phone FROM clients`)).
		WithoutArgs().
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "phone"}).
			AddRow(1, "chris@example.com", "aa").
			AddRow(2, "chris@example.org", "bb"))

	rows, err := repo.Search(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_ByEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	email := "chris@example.org"
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, phone FROM clients WHERE email = ?`)).
		WithArgs(email).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "phone"}).AddRow(2, email, "bb"))

	rows, err := repo.Search(context.Background(), &email)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, email, rows[0].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAttributes_SingleQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT client_id, meta_key, meta_value FROM client_meta WHERE client_id IN (?, ?)`)).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "meta_key", "meta_value"}).
			AddRow(1, "field1", "value1").
			AddRow(2, "field1", "other"))

	rows, err := repo.ListAttributes(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[1].ClientID)
	assert.Equal(t, "other", rows[1].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAttributes_NoIDs(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	rows, err := repo.ListAttributes(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByEmail_MatchesExactCase(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewClientsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM clients WHERE email = ?`)).
		WithArgs("Chris@Example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	n, err := repo.CountByEmail(context.Background(), "Chris@Example.com")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
