package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/chrismeller/mj/internal/model"
	"github.com/jmoiron/sqlx"
)

// ClientsRepository persists clients (clients table) and their attributes (client_meta table).
type ClientsRepository interface {
	CountByEmail(ctx context.Context, email string) (int, error)
	// Insert writes the client row and one client_meta row per attribute. If tx is nil, it will
	// open/commit an internal transaction; otherwise it uses the given tx.
	Insert(ctx context.Context, tx *sqlx.Tx, email, encryptedPhone string, attrs map[string]string) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.ClientRow, error)
	// Search lists every client when email is nil, otherwise exact email matches.
	Search(ctx context.Context, email *string) ([]model.ClientRow, error)
	ListAttributes(ctx context.Context, clientIDs ...int64) ([]model.AttributeRow, error)
}

type ClientsRepositoryImpl struct {
	db *sqlx.DB
}

func NewClientsRepository(db *sqlx.DB) *ClientsRepositoryImpl {
	return &ClientsRepositoryImpl{db: db}
}

var _ ClientsRepository = (*ClientsRepositoryImpl)(nil)

func (r *ClientsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *ClientsRepositoryImpl) CountByEmail(ctx context.Context, email string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM clients WHERE email = ?`), email)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *ClientsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, email, encryptedPhone string, attrs map[string]string) (int64, error) {
	var id int64
	err := r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO clients (email, phone) VALUES (?, ?)`),
			email, encryptedPhone,
		); err != nil {
			return fmt.Errorf("insert client: %w", err)
		}

		// lib/pq has no LastInsertId; read the id back inside the same tx instead.
		if err := tx.GetContext(ctx, &id,
			tx.Rebind(`SELECT id FROM clients WHERE email = ? ORDER BY id DESC LIMIT 1`),
			email,
		); err != nil {
			return fmt.Errorf("resolve client id: %w", err)
		}

		if len(attrs) == 0 {
			return nil
		}

		stmt, err := tx.PreparexContext(ctx,
			tx.Rebind(`INSERT INTO client_meta (client_id, meta_key, meta_value) VALUES (?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare client meta: %w", err)
		}
		defer stmt.Close()

		for _, k := range slices.Sorted(maps.Keys(attrs)) {
			if _, err := stmt.ExecContext(ctx, id, k, attrs[k]); err != nil {
				return fmt.Errorf("insert client meta %q: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *ClientsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.ClientRow, error) {
	var c model.ClientRow
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`
		SELECT id, email, phone
		  FROM clients
		 WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClientsRepositoryImpl) Search(ctx context.Context, email *string) ([]model.ClientRow, error) {
	q := `SELECT id, email, phone FROM clients`
	var args []any
	if email != nil {
		q += ` WHERE email = ?`
		args = append(args, *email)
	}

	var rows []model.ClientRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAttributes fetches the attributes of every given client in one query.
func (r *ClientsRepositoryImpl) ListAttributes(ctx context.Context, clientIDs ...int64) ([]model.AttributeRow, error) {
	if len(clientIDs) == 0 {
		return nil, nil
	}

	const base = `SELECT client_id, meta_key, meta_value FROM client_meta WHERE client_id IN (?)`
	query, args, err := sqlx.In(base, clientIDs)
	if err != nil {
		return nil, err
	}

	var rows []model.AttributeRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}
