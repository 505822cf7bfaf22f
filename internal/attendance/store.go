package attendance

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"AEGIS-backend/internal/alerts"
	"AEGIS-backend/internal/geofence"
	"AEGIS-backend/internal/platform/db"
)

// RecordStore is what the service needs from persistence.
type RecordStore interface {
	// InsertCheckin writes the record and, when non-nil, its alert in one transaction.
	InsertCheckin(ctx context.Context, a *Attendance, alert *alerts.Alert) error
	// CompleteCheckout only updates a record whose checkout is still empty.
	CompleteCheckout(ctx context.Context, id string, at time.Time, c geofence.Coordinate) (int64, error)
	LatestForUserOn(ctx context.Context, userID, on string) (*Attendance, error)
	GetByID(ctx context.Context, id string) (*Attendance, error)
	List(ctx context.Context, q ListQuery) ([]Attendance, int64, error)
	Stats(ctx context.Context, from, to string, limit int) ([]StatsRow, error)
	Summary(ctx context.Context, from, to string, userID *string) (Summary, error)
	CountOn(ctx context.Context, on string) (DayCounts, error)
}

// AlertWriter is satisfied by alerts.Store.
type AlertWriter interface {
	InsertTx(ctx context.Context, tx db.DBTX, a *alerts.Alert) error
}

type Store struct {
	conn   *sql.DB
	alerts AlertWriter
}

func NewStore(conn *sql.DB, aw AlertWriter) *Store { return &Store{conn: conn, alerts: aw} }

const attendanceColumns = `attendance_id, user_id, community_id, DATE_FORMAT(attended_on, '%Y-%m-%d') AS attended_on,
checkin_at, checkin_latitude, checkin_longitude, checkin_accuracy, location_valid, distance_meters, note,
checkout_at, checkout_latitude, checkout_longitude`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendance(r rowScanner) (Attendance, error) {
	var row attendanceRow
	if err := r.Scan(
		&row.AttendanceID, &row.UserID, &row.CommunityID, &row.AttendedOn,
		&row.CheckinAt, &row.CheckinLatitude, &row.CheckinLongitude, &row.CheckinAccuracy,
		&row.LocationValid, &row.DistanceMeters, &row.Note,
		&row.CheckoutAt, &row.CheckoutLatitude, &row.CheckoutLongitude,
	); err != nil {
		return Attendance{}, err
	}
	return row.toModel(), nil
}

func (s *Store) InsertCheckin(ctx context.Context, a *Attendance, alert *alerts.Alert) error {
	return db.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		const q = `
		INSERT INTO attendances
		(attendance_id, user_id, community_id, attended_on, checkin_at, checkin_latitude, checkin_longitude,
		 checkin_accuracy, location_valid, distance_meters, note)
		VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, q,
			a.ID, a.UserID, strOrNil(a.CommunityID), a.AttendedOn, a.CheckinAt,
			a.CheckinCoordinate.Latitude, a.CheckinCoordinate.Longitude,
			floatOrNil(a.CheckinAccuracy), a.LocationValid, floatOrNil(a.DistanceMeters), strOrNil(a.Note),
		); err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}
		if alert == nil {
			return nil
		}
		return s.alerts.InsertTx(ctx, tx, alert)
	})
}

func (s *Store) CompleteCheckout(ctx context.Context, id string, at time.Time, c geofence.Coordinate) (int64, error) {
	const q = `
		UPDATE attendances
		SET checkout_at = ?, checkout_latitude = ?, checkout_longitude = ?
		WHERE attendance_id = ?
		AND checkout_at IS NULL`
	res, err := s.conn.ExecContext(ctx, q, at, c.Latitude, c.Longitude, id)
	if err != nil {
		return 0, fmt.Errorf("complete checkout: %w", err)
	}
	return res.RowsAffected()
}

// LatestForUserOn: 当日の最新 1 件（無ければ nil）
func (s *Store) LatestForUserOn(ctx context.Context, userID, on string) (*Attendance, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT `+attendanceColumns+`
	FROM attendances
	WHERE user_id = ? AND attended_on = ?
	ORDER BY checkin_at DESC, attendance_id DESC
	LIMIT 1`, userID, on)
	a, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*Attendance, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+attendanceColumns+` FROM attendances WHERE attendance_id = ?`, id)
	a, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List: 条件に応じて動的WHERE + ORDER + LIMIT/OFFSET
func (s *Store) List(ctx context.Context, q ListQuery) ([]Attendance, int64, error) {
	var (
		buf    bytes.Buffer
		args   []any
		wheres []string
	)

	buf.WriteString(`SELECT ` + attendanceColumns + ` FROM attendances`)
	// WHERE
	if q.UserID != nil && *q.UserID != "" {
		wheres = append(wheres, "user_id = ?")
		args = append(args, *q.UserID)
	}
	if q.CommunityID != nil && *q.CommunityID != "" {
		wheres = append(wheres, "community_id = ?")
		args = append(args, *q.CommunityID)
	}
	if q.On != nil && *q.On != "" {
		wheres = append(wheres, "attended_on = ?")
		args = append(args, *q.On)
	} else {
		if q.From != nil && *q.From != "" {
			wheres = append(wheres, "attended_on >= ?")
			args = append(args, *q.From)
		}
		if q.To != nil && *q.To != "" {
			wheres = append(wheres, "attended_on <= ?")
			args = append(args, *q.To)
		}
	}
	if q.LocationValid != nil {
		wheres = append(wheres, "location_valid = ?")
		args = append(args, *q.LocationValid)
	}
	if len(wheres) > 0 {
		buf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}

	// ORDER
	switch q.Sort {
	case SortCheckinAtAsc:
		buf.WriteString(" ORDER BY checkin_at ASC, attendance_id ASC")
	case SortAttendedOnDesc:
		buf.WriteString(" ORDER BY attended_on DESC, checkin_at DESC, attendance_id DESC")
	case SortAttendedOnAsc:
		buf.WriteString(" ORDER BY attended_on ASC, checkin_at ASC, attendance_id ASC")
	default:
		buf.WriteString(" ORDER BY checkin_at DESC, attendance_id DESC")
	}

	// LIMIT/OFFSET
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	buf.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	rows, err := s.conn.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Attendance{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// COUNT（ORDER BY より前までを再構築）
	var cntBuf bytes.Buffer
	cntBuf.WriteString("SELECT COUNT(*) FROM attendances")
	if len(wheres) > 0 {
		cntBuf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}
	var total int64
	if err := s.conn.QueryRowContext(ctx, cntBuf.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Stats: 期間の打卡数をユーザ別合計（TOP N）
func (s *Store) Stats(ctx context.Context, from, to string, limit int) ([]StatsRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.QueryContext(ctx, `
	SELECT user_id, COUNT(*) AS cnt, SUM(CASE WHEN location_valid = 0 THEN 1 ELSE 0 END) AS invalid_cnt
	FROM attendances
	WHERE attended_on BETWEEN ? AND ?
	GROUP BY user_id
	ORDER BY cnt DESC, user_id ASC
	LIMIT ?`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StatsRow{}
	for rows.Next() {
		var row StatsRow
		if err := rows.Scan(&row.UserID, &row.Count, &row.InvalidCount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) Summary(ctx context.Context, from, to string, userID *string) (Summary, error) {
	q := `
	SELECT
	COUNT(*),
	COUNT(DISTINCT user_id),
	COALESCE(SUM(CASE WHEN location_valid = 1 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN checkout_at IS NOT NULL THEN 1 ELSE 0 END), 0),
	AVG(CASE WHEN checkout_at IS NOT NULL THEN TIMESTAMPDIFF(MINUTE, checkin_at, checkout_at) END)
	FROM attendances
	WHERE attended_on BETWEEN ? AND ?`
	args := []any{from, to}
	if userID != nil && *userID != "" {
		q += ` AND user_id = ?`
		args = append(args, *userID)
	}

	var (
		out Summary
		avg sql.NullFloat64
	)
	if err := s.conn.QueryRowContext(ctx, q, args...).Scan(&out.Total, &out.ActiveUsers, &out.Valid, &out.Completed, &avg); err != nil {
		return Summary{}, err
	}
	out.From, out.To = from, to
	out.Invalid = out.Total - out.Valid
	if avg.Valid {
		out.AverageWorkedMinutes = avg.Float64
	}
	return out, nil
}

func (s *Store) CountOn(ctx context.Context, on string) (DayCounts, error) {
	var c DayCounts
	err := s.conn.QueryRowContext(ctx, `
	SELECT COUNT(DISTINCT user_id), COUNT(DISTINCT CASE WHEN checkout_at IS NULL THEN user_id END)
	FROM attendances
	WHERE attended_on = ?`, on).Scan(&c.CheckedIn, &c.OnDuty)
	return c, err
}

// ===== helpers =====

func strOrNil(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
