package attendance

import (
	"database/sql"
	"math"
	"time"

	"AEGIS-backend/internal/geofence"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// DB行に対応（スキャン用）
type attendanceRow struct {
	AttendanceID      string
	UserID            string
	CommunityID       sql.NullString
	AttendedOn        string // DATE → "YYYY-MM-DD"
	CheckinAt         time.Time
	CheckinLatitude   float64
	CheckinLongitude  float64
	CheckinAccuracy   sql.NullFloat64
	LocationValid     bool
	DistanceMeters    sql.NullFloat64
	Note              sql.NullString
	CheckoutAt        sql.NullTime
	CheckoutLatitude  sql.NullFloat64
	CheckoutLongitude sql.NullFloat64
}

// Attendance is one check-in, completed in place by its checkout.
type Attendance struct {
	ID                 string
	UserID             string
	CommunityID        *string
	AttendedOn         string
	CheckinAt          time.Time
	CheckinCoordinate  geofence.Coordinate
	CheckinAccuracy    *float64
	LocationValid      bool
	DistanceMeters     *float64
	Note               *string
	CheckoutAt         *time.Time
	CheckoutCoordinate *geofence.Coordinate
}

// Active: 簽到済み・未簽退
func (a Attendance) Active() bool { return a.CheckoutAt == nil }

func (a Attendance) Status() string {
	if a.Active() {
		return StatusActive
	}
	return StatusCompleted
}

func (r attendanceRow) toModel() Attendance {
	a := Attendance{
		ID:                r.AttendanceID,
		UserID:            r.UserID,
		AttendedOn:        r.AttendedOn,
		CheckinAt:         r.CheckinAt.UTC(),
		CheckinCoordinate: geofence.Coordinate{Latitude: r.CheckinLatitude, Longitude: r.CheckinLongitude},
		LocationValid:     r.LocationValid,
	}
	if r.CommunityID.Valid {
		a.CommunityID = &r.CommunityID.String
	}
	if r.CheckinAccuracy.Valid {
		a.CheckinAccuracy = &r.CheckinAccuracy.Float64
	}
	if r.DistanceMeters.Valid {
		a.DistanceMeters = &r.DistanceMeters.Float64
	}
	if r.Note.Valid {
		a.Note = &r.Note.String
	}
	if r.CheckoutAt.Valid {
		t := r.CheckoutAt.Time.UTC()
		a.CheckoutAt = &t
		if r.CheckoutLatitude.Valid && r.CheckoutLongitude.Valid {
			a.CheckoutCoordinate = &geofence.Coordinate{Latitude: r.CheckoutLatitude.Float64, Longitude: r.CheckoutLongitude.Float64}
		}
	}
	return a
}

func (a Attendance) toDTO() AttendanceResponse {
	res := AttendanceResponse{
		AttendanceID:     a.ID,
		UserID:           a.UserID,
		CommunityID:      a.CommunityID,
		AttendedOn:       a.AttendedOn,
		Status:           a.Status(),
		CheckinAt:        a.CheckinAt,
		CheckinLocation:  a.CheckinCoordinate,
		CheckinAccuracy:  a.CheckinAccuracy,
		LocationValid:    a.LocationValid,
		DistanceMeters:   a.DistanceMeters,
		Note:             a.Note,
		CheckoutAt:       a.CheckoutAt,
		CheckoutLocation: a.CheckoutCoordinate,
	}
	if a.CheckoutAt != nil {
		m := int64(a.CheckoutAt.Sub(a.CheckinAt) / time.Minute)
		res.WorkedMinutes = &m
	}
	return res
}

func finiteOrNil(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
