package community

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"AEGIS-backend/internal/platform/db"
)

var errDuplicateCode = errors.New("community code already exists")

type CommunityStore interface {
	Get(ctx context.Context, id string) (*Community, error)
	List(ctx context.Context, status *string) ([]Community, error)
	Create(ctx context.Context, c *Community) error
	Update(ctx context.Context, c *Community) (int64, error)
	SetStatus(ctx context.Context, id, status string, at time.Time) (int64, error)
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

const communityColumns = `community_id, name, code, type, status, address, contact_phone, contact_email, manager,
description, notes, latitude, longitude, checkin_radius_meters, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommunity(r rowScanner) (Community, error) {
	var (
		c           Community
		desc, notes sql.NullString
	)
	if err := r.Scan(
		&c.ID, &c.Name, &c.Code, &c.Type, &c.Status, &c.Address, &c.ContactPhone, &c.ContactEmail, &c.Manager,
		&desc, &notes, &c.Latitude, &c.Longitude, &c.CheckInRadiusMeters, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return Community{}, err
	}
	if desc.Valid {
		c.Description = &desc.String
	}
	if notes.Valid {
		c.Notes = &notes.String
	}
	return c, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Community, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+communityColumns+` FROM communities WHERE community_id = ?`, id)
	c, err := scanCommunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get community %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) List(ctx context.Context, status *string) ([]Community, error) {
	q := `SELECT ` + communityColumns + ` FROM communities`
	args := []any{}
	if status != nil {
		q += ` WHERE status = ?`
		args = append(args, *status)
	}
	q += ` ORDER BY name, community_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Community{}
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, c *Community) error {
	const q = `
	INSERT INTO communities
	(community_id, name, code, type, status, address, contact_phone, contact_email, manager,
	 description, notes, latitude, longitude, checkin_radius_meters, created_at, updated_at)
	VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		c.ID, c.Name, c.Code, c.Type, c.Status, c.Address, c.ContactPhone, c.ContactEmail, c.Manager,
		strPtrOrNil(c.Description), strPtrOrNil(c.Notes), c.Latitude, c.Longitude, c.CheckInRadiusMeters,
		c.CreatedAt, c.UpdatedAt,
	)
	if db.IsDuplicateKey(err) {
		return errDuplicateCode
	}
	return err
}

func (s *Store) Update(ctx context.Context, c *Community) (int64, error) {
	const q = `
		UPDATE communities
		SET name = ?, code = ?, type = ?, status = ?, address = ?, contact_phone = ?, contact_email = ?,
		    manager = ?, description = ?, notes = ?, latitude = ?, longitude = ?, checkin_radius_meters = ?,
		    updated_at = ?
		WHERE community_id = ?`
	res, err := s.db.ExecContext(ctx, q,
		c.Name, c.Code, c.Type, c.Status, c.Address, c.ContactPhone, c.ContactEmail,
		c.Manager, strPtrOrNil(c.Description), strPtrOrNil(c.Notes), c.Latitude, c.Longitude, c.CheckInRadiusMeters,
		c.UpdatedAt, c.ID,
	)
	if db.IsDuplicateKey(err) {
		return 0, errDuplicateCode
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) SetStatus(ctx context.Context, id, status string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE communities SET status = ?, updated_at = ? WHERE community_id = ?`, status, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func strPtrOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
