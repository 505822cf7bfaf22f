package alerts

import (
	"time"
)

const (
	TypeLocationInvalid = "location_invalid"

	PriorityMedium = "medium"

	StatusActive   = "active"
	StatusResolved = "resolved"
)

const dateLayout = "2006-01-02"

// Alert: 打卡位置異常などの要対応事項
type Alert struct {
	ID           string
	Type         string
	Title        string
	Description  string
	UserID       string
	AttendanceID *string
	Latitude     *float64
	Longitude    *float64
	Priority     string
	Status       string
	AlertedOn    time.Time // DATE (UTC midnight of the local day)
	CreatedAt    time.Time
	ResolvedAt   *time.Time
	ResolvedBy   *string
}

// NewLocationInvalid builds the alert raised for an out-of-zone check-in.
func NewLocationInvalid(id, userID, attendanceID string, lat, lng float64, day, at time.Time) Alert {
	return Alert{
		ID:           id,
		Type:         TypeLocationInvalid,
		Title:        "打卡位置異常",
		Description:  userID + " 的打卡位置不在允許範圍內",
		UserID:       userID,
		AttendanceID: &attendanceID,
		Latitude:     &lat,
		Longitude:    &lng,
		Priority:     PriorityMedium,
		Status:       StatusActive,
		AlertedOn:    day,
		CreatedAt:    at,
	}
}

type Filter struct {
	Status *string
	UserID *string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
