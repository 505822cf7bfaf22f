package attendance

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"AEGIS-backend/internal/alerts"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewStore(conn, alerts.NewStore(conn)), mock
}

func outsideRecord() (*Attendance, *alerts.Alert) {
	at := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	dist := 1113.2
	a := &Attendance{
		ID:                "01ATT",
		UserID:            "guard-1",
		AttendedOn:        "2026-03-02",
		CheckinAt:         at,
		CheckinCoordinate: outside,
		LocationValid:     false,
		DistanceMeters:    &dist,
	}
	al := alerts.NewLocationInvalid("01ALERT", a.UserID, a.ID, outside.Latitude, outside.Longitude,
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), at)
	return a, &al
}

func TestStoreInsertCheckin_CommitsRecordWithAlert(t *testing.T) {
	st, mock := newMockStore(t)
	a, al := outsideRecord()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO attendances`).
		WithArgs(a.ID, a.UserID, nil, "2026-03-02", sqlmock.AnyArg(), outside.Latitude, outside.Longitude,
			nil, false, *a.DistanceMeters, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs(al.ID, alerts.TypeLocationInvalid, sqlmock.AnyArg(), sqlmock.AnyArg(), a.UserID, a.ID,
			outside.Latitude, outside.Longitude, alerts.PriorityMedium, alerts.StatusActive, "2026-03-02", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.InsertCheckin(context.Background(), a, al); err != nil {
		t.Fatalf("InsertCheckin: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoreInsertCheckin_RollsBack(t *testing.T) {
	boom := errors.New("disk full")
	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
	}{
		{"alert insert fails", func(mock sqlmock.Sqlmock) {
			mock.ExpectExec(`INSERT INTO attendances`).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`INSERT INTO alerts`).WillReturnError(boom)
		}},
		{"record insert fails", func(mock sqlmock.Sqlmock) {
			mock.ExpectExec(`INSERT INTO attendances`).WillReturnError(boom)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, mock := newMockStore(t)
			a, al := outsideRecord()

			mock.ExpectBegin()
			tt.expect(mock)
			mock.ExpectRollback()

			err := st.InsertCheckin(context.Background(), a, al)
			if !errors.Is(err, boom) {
				t.Fatalf("err = %v, want wrapped %v", err, boom)
			}
			// Commit が呼ばれていれば ExpectRollback が満たされない
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestStoreInsertCheckin_InsideZoneWritesNoAlert(t *testing.T) {
	st, mock := newMockStore(t)
	a, _ := outsideRecord()
	a.CheckinCoordinate, a.LocationValid = inside, true

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO attendances`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.InsertCheckin(context.Background(), a, nil); err != nil {
		t.Fatalf("InsertCheckin: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoreCompleteCheckout_OnlyOnce(t *testing.T) {
	st, mock := newMockStore(t)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	const q = `UPDATE attendances SET checkout_at = \?, checkout_latitude = \?, checkout_longitude = \? WHERE attendance_id = \? AND checkout_at IS NULL`
	mock.ExpectExec(q).WithArgs(sqlmock.AnyArg(), inside.Latitude, inside.Longitude, "01ATT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(sqlmock.AnyArg(), inside.Latitude, inside.Longitude, "01ATT").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := st.CompleteCheckout(context.Background(), "01ATT", at, inside)
	if err != nil || n != 1 {
		t.Fatalf("first checkout = %d, %v; want 1 row", n, err)
	}
	n, err = st.CompleteCheckout(context.Background(), "01ATT", at.Add(time.Minute), inside)
	if err != nil || n != 0 {
		t.Fatalf("second checkout = %d, %v; want 0 rows", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func attendanceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"attendance_id", "user_id", "community_id", "attended_on",
		"checkin_at", "checkin_latitude", "checkin_longitude", "checkin_accuracy", "location_valid", "distance_meters", "note",
		"checkout_at", "checkout_latitude", "checkout_longitude",
	})
}

func TestStoreList_WhereAndCountMatch(t *testing.T) {
	checkin := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	checkout := checkin.Add(8 * time.Hour)
	user, from, to, on := "guard-1", "2026-03-01", "2026-03-07", "2026-03-02"
	valid := false

	tests := []struct {
		name  string
		q     ListQuery
		where string
		args  []any
		page  string
	}{
		{
			name:  "range with validity filter",
			q:     ListQuery{UserID: &user, From: &from, To: &to, LocationValid: &valid, Limit: 20, Sort: SortCheckinAtDesc},
			where: `WHERE user_id = \? AND attended_on >= \? AND attended_on <= \? AND location_valid = \?`,
			args:  []any{user, from, to, false},
			page:  `ORDER BY checkin_at DESC, attendance_id DESC LIMIT 20 OFFSET 0`,
		},
		{
			name:  "single day wins over range",
			q:     ListQuery{On: &on, From: &from, Limit: 500, Offset: 10, Sort: SortAttendedOnAsc},
			where: `WHERE attended_on = \?`,
			args:  []any{on},
			page:  `ORDER BY attended_on ASC, checkin_at ASC, attendance_id ASC LIMIT 200 OFFSET 10`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, mock := newMockStore(t)
			args := make([]driver.Value, 0, len(tt.args))
			for _, a := range tt.args {
				args = append(args, a)
			}

			mock.ExpectQuery(`SELECT .* FROM attendances ` + tt.where + ` ` + tt.page + `$`).
				WithArgs(args...).
				WillReturnRows(attendanceRows().
					AddRow("01A", user, nil, on, checkin, outside.Latitude, outside.Longitude, 8.5, false, 1113.2, nil,
						checkout, inside.Latitude, inside.Longitude).
					AddRow("01B", user, "C1", on, checkin, inside.Latitude, inside.Longitude, nil, true, 0.0, "morning",
						nil, nil, nil))
			mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendances ` + tt.where + `$`).
				WithArgs(args...).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

			items, total, err := st.List(context.Background(), tt.q)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if total != 42 || len(items) != 2 {
				t.Fatalf("total=%d items=%d", total, len(items))
			}
			if items[0].Active() || items[0].CheckoutCoordinate == nil || items[0].CheckinAccuracy == nil {
				t.Errorf("completed row decoded as %+v", items[0])
			}
			if !items[1].Active() || items[1].CommunityID == nil || *items[1].CommunityID != "C1" {
				t.Errorf("active row decoded as %+v", items[1])
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}
