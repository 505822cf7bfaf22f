package alerts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"AEGIS-backend/internal/platform/db"
)

type AlertStore interface {
	// InsertTx writes inside the caller's transaction.
	InsertTx(ctx context.Context, tx db.DBTX, a *Alert) error
	Get(ctx context.Context, id string) (*Alert, error)
	List(ctx context.Context, f Filter) ([]Alert, error)
	CountActive(ctx context.Context) (int64, error)
	Resolve(ctx context.Context, id, by string, at time.Time) (int64, error)
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

const alertColumns = `alert_id, type, title, description, user_id, attendance_id, latitude, longitude,
priority, status, alerted_on, created_at, resolved_at, resolved_by`

func (s *Store) InsertTx(ctx context.Context, tx db.DBTX, a *Alert) error {
	const q = `
	INSERT INTO alerts
	(alert_id, type, title, description, user_id, attendance_id, latitude, longitude, priority, status, alerted_on, created_at)
	VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		a.ID, a.Type, a.Title, a.Description, a.UserID,
		strPtrOrNil(a.AttendanceID), floatPtrOrNil(a.Latitude), floatPtrOrNil(a.Longitude),
		a.Priority, a.Status, a.AlertedOn.Format(dateLayout), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(r rowScanner) (Alert, error) {
	var (
		a          Alert
		attendance sql.NullString
		lat, lng   sql.NullFloat64
		resolvedAt sql.NullTime
		resolvedBy sql.NullString
	)
	if err := r.Scan(
		&a.ID, &a.Type, &a.Title, &a.Description, &a.UserID, &attendance, &lat, &lng,
		&a.Priority, &a.Status, &a.AlertedOn, &a.CreatedAt, &resolvedAt, &resolvedBy,
	); err != nil {
		return Alert{}, err
	}
	if attendance.Valid {
		a.AttendanceID = &attendance.String
	}
	if lat.Valid {
		a.Latitude = &lat.Float64
	}
	if lng.Valid {
		a.Longitude = &lng.Float64
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	if resolvedBy.Valid {
		a.ResolvedBy = &resolvedBy.String
	}
	return a, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE alert_id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]Alert, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`)

	args := []any{}
	if f.Status != nil {
		sb.WriteString(` AND status = ?`)
		args = append(args, *f.Status)
	}
	if f.UserID != nil {
		sb.WriteString(` AND user_id = ?`)
		args = append(args, *f.UserID)
	}
	if f.From != nil {
		sb.WriteString(` AND alerted_on >= ?`)
		args = append(args, f.From.Format(dateLayout))
	}
	if f.To != nil {
		sb.WriteString(` AND alerted_on <= ?`)
		args = append(args, f.To.Format(dateLayout))
	}
	sb.WriteString(` ORDER BY created_at DESC, alert_id DESC LIMIT ? OFFSET ?`)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE status = ?`, StatusActive).Scan(&n)
	return n, err
}

// Resolve only touches active alerts; 0 rows means missing or already resolved.
func (s *Store) Resolve(ctx context.Context, id, by string, at time.Time) (int64, error) {
	const q = `
		UPDATE alerts
		SET status = ?, resolved_at = ?, resolved_by = ?
		WHERE alert_id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, StatusResolved, at, by, id, StatusActive)
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

func floatPtrOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
