package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"AEGIS-backend/internal/platform/db"
)

type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CommunityID  *string
	IsDisabled   bool
	CreatedAt    time.Time
}

type AccountStore interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	Create(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id string) (int64, error)
	UpdateRole(ctx context.Context, id, role string) (int64, error)
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) AccountStore {
	return &Store{db: conn}
}

const accountColumns = `id, name, email, password_hash, role, community_id, is_disabled, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (Account, error) {
	var (
		a           Account
		community   sql.NullString
		isDisabledI int
	)
	if err := r.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &community, &isDisabledI, &a.CreatedAt); err != nil {
		return Account{}, err
	}
	if community.Valid {
		a.CommunityID = &community.String
	}
	a.IsDisabled = isDisabledI != 0
	return a, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM auth_accounts WHERE id = ? LIMIT 1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return &a, nil
}

func (s *Store) List(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM auth_accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := make([]Account, 0, 32)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, a *Account) error {
	const q = `
INSERT INTO auth_accounts (id, name, email, password_hash, role, community_id, is_disabled, created_at)
VALUES (?, ?, ?, ?, ?, ?, 0, ?)
`
	var community any
	if a.CommunityID != nil && *a.CommunityID != "" {
		community = *a.CommunityID
	}
	_, err := s.db.ExecContext(ctx, q, a.ID, a.Name, a.Email, a.PasswordHash, a.Role, community, a.CreatedAt)
	if db.IsDuplicateKey(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_accounts WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) UpdateRole(ctx context.Context, id, role string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE auth_accounts SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
