package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStoreInsertTx_WritesLocalDay(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	at := time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC) // 2026-03-02 01:30 Asia/Taipei
	a := NewLocationInvalid("01ALERT", "guard-1", "01ATT", 25.043, 121.5654,
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), at)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs("01ALERT", TypeLocationInvalid, a.Title, a.Description, "guard-1", "01ATT", 25.043, 121.5654,
			PriorityMedium, StatusActive, "2026-03-02", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := conn.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := NewStore(conn).InsertTx(context.Background(), tx, &a); err != nil {
		t.Fatalf("InsertTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoreInsertTx_WrapsDriverError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	boom := errors.New("duplicate entry")
	mock.ExpectExec(`INSERT INTO alerts`).WillReturnError(boom)

	a := NewLocationInvalid("01ALERT", "guard-1", "01ATT", 0, 0, time.Now(), time.Now())
	if err := NewStore(conn).InsertTx(context.Background(), conn, &a); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestStoreResolve_OnlyActive(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	at := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	const q = `UPDATE alerts SET status = \?, resolved_at = \?, resolved_by = \? WHERE alert_id = \? AND status = \?`
	mock.ExpectExec(q).WithArgs(StatusResolved, at, "admin", "01ALERT", StatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(StatusResolved, at, "admin", "01ALERT", StatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	st := NewStore(conn)
	if n, err := st.Resolve(context.Background(), "01ALERT", "admin", at); err != nil || n != 1 {
		t.Fatalf("first resolve = %d, %v; want 1 row", n, err)
	}
	if n, err := st.Resolve(context.Background(), "01ALERT", "admin", at); err != nil || n != 0 {
		t.Fatalf("second resolve = %d, %v; want 0 rows", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoreList_Filters(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	status, from := StatusActive, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM alerts WHERE 1=1 AND status = \? AND alerted_on >= \? ORDER BY created_at DESC, alert_id DESC LIMIT \? OFFSET \?$`).
		WithArgs(StatusActive, "2026-03-01", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"alert_id", "type", "title", "description", "user_id", "attendance_id", "latitude", "longitude",
			"priority", "status", "alerted_on", "created_at", "resolved_at", "resolved_by",
		}).AddRow("01ALERT", TypeLocationInvalid, "t", "d", "guard-1", nil, nil, nil,
			PriorityMedium, StatusActive, from, created, nil, nil))

	got, err := NewStore(conn).List(context.Background(), Filter{Status: &status, From: &from, Limit: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].AttendanceID != nil || got[0].ResolvedAt != nil {
		t.Fatalf("got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
