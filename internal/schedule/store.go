package schedule

import (
	"context"
	"database/sql"
	"errors"

	"AEGIS-backend/internal/platform/db"
)

type ShiftStore interface {
	Create(ctx context.Context, s *Shift) error
	Update(ctx context.Context, s *Shift) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	Get(ctx context.Context, id string) (*Shift, error)
	List(ctx context.Context, f Filter) ([]Shift, error)
	Count(ctx context.Context, f Filter) (int64, error)
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

const shiftColumns = `shift_id, staff_id, community_id, DATE_FORMAT(shift_date, '%Y-%m-%d'), start_time, end_time,
position, note, created_by, updated_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShift(r rowScanner) (Shift, error) {
	var (
		s                     Shift
		community, note, upBy sql.NullString
	)
	if err := r.Scan(&s.ID, &s.StaffID, &community, &s.Date, &s.StartTime, &s.EndTime,
		&s.Position, &note, &s.CreatedBy, &upBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Shift{}, err
	}
	if community.Valid {
		s.CommunityID = &community.String
	}
	if note.Valid {
		s.Note = &note.String
	}
	if upBy.Valid {
		s.UpdatedBy = &upBy.String
	}
	return s, nil
}

func (st *Store) Create(ctx context.Context, s *Shift) error {
	const q = `
	INSERT INTO shifts
	(shift_id, staff_id, community_id, shift_date, start_time, end_time, position, note, created_by, created_at, updated_at)
	VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := st.db.ExecContext(ctx, q, s.ID, s.StaffID, strOrNil(s.CommunityID), s.Date, s.StartTime, s.EndTime,
		s.Position, strOrNil(s.Note), s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	return err
}

func (st *Store) Update(ctx context.Context, s *Shift) (int64, error) {
	const q = `
		UPDATE shifts
		SET staff_id = ?, community_id = ?, shift_date = ?, start_time = ?, end_time = ?, position = ?, note = ?,
		    updated_by = ?, updated_at = ?
		WHERE shift_id = ?`
	res, err := st.db.ExecContext(ctx, q, s.StaffID, strOrNil(s.CommunityID), s.Date, s.StartTime, s.EndTime,
		s.Position, strOrNil(s.Note), strOrNil(s.UpdatedBy), s.UpdatedAt, s.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (st *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := st.db.ExecContext(ctx, `DELETE FROM shifts WHERE shift_id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (st *Store) Get(ctx context.Context, id string) (*Shift, error) {
	s, err := scanShift(st.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE shift_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// where: shift_date BETWEEN from AND to（両端含む）
func (f Filter) where() (string, []any) {
	q := ` WHERE shift_date BETWEEN ? AND ?`
	args := []any{f.From, f.To}
	if f.StaffID != nil {
		q += ` AND staff_id = ?`
		args = append(args, *f.StaffID)
	}
	if f.CommunityID != nil {
		q += ` AND community_id = ?`
		args = append(args, *f.CommunityID)
	}
	return q, args
}

func (st *Store) List(ctx context.Context, f Filter) ([]Shift, error) {
	where, args := f.where()
	q := `SELECT ` + shiftColumns + ` FROM shifts` + where + ` ORDER BY shift_date, start_time, staff_id`

	rows, err := st.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Shift{}
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (st *Store) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := f.where()
	var n int64
	err := st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shifts`+where, args...).Scan(&n)
	return n, err
}

func strOrNil(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

