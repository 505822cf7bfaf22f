package attendance

import (
	"time"

	"AEGIS-backend/internal/geofence"
)

const (
	SortCheckinAtDesc  = "checkin_at_desc"
	SortCheckinAtAsc   = "checkin_at_asc"
	SortAttendedOnDesc = "attended_on_desc"
	SortAttendedOnAsc  = "attended_on_asc"
	DefaultPageLimit   = 50
	MaxPageLimit       = 200
	DefaultSort        = SortCheckinAtDesc
	DateLayout         = "2006-01-02"

	HistoryDays  = 30
	HistoryLimit = 20
)

// LocationRequest: 端末から届いた位置。CapturedAt 未指定ならサーバ受信時刻
type LocationRequest struct {
	Latitude   *float64   `json:"latitude" binding:"required"`
	Longitude  *float64   `json:"longitude" binding:"required"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

type LocationResponse struct {
	Location   geofence.Coordinate `json:"location"`
	Accuracy   float64             `json:"accuracy"`
	CapturedAt time.Time           `json:"captured_at"`
	ValidUntil time.Time           `json:"valid_until"`
}

// CheckinRequest: 座標が無ければ直近 POST /locations の位置を使う
type CheckinRequest struct {
	CommunityID *string    `json:"community_id,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Accuracy    *float64   `json:"accuracy,omitempty"`
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
	Note        *string    `json:"note,omitempty"`
}

type CheckoutRequest struct {
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

type AttendanceResponse struct {
	AttendanceID     string               `json:"attendance_id"`
	UserID           string               `json:"user_id"`
	CommunityID      *string              `json:"community_id,omitempty"`
	AttendedOn       string               `json:"attended_on"` // YYYY-MM-DD
	Status           string               `json:"status"`
	CheckinAt        time.Time            `json:"checkin_at"`
	CheckinLocation  geofence.Coordinate  `json:"checkin_location"`
	CheckinAccuracy  *float64             `json:"checkin_accuracy,omitempty"`
	LocationValid    bool                 `json:"location_valid"`
	DistanceMeters   *float64             `json:"distance_meters,omitempty"`
	Note             *string              `json:"note,omitempty"`
	CheckoutAt       *time.Time           `json:"checkout_at,omitempty"`
	CheckoutLocation *geofence.Coordinate `json:"checkout_location,omitempty"`
	WorkedMinutes    *int64               `json:"worked_minutes,omitempty"`
}

const (
	ActionCheckin  = "checkin"
	ActionCheckout = "checkout"
)

type PunchResponse struct {
	Action     string             `json:"action"`
	Attendance AttendanceResponse `json:"attendance"`
}

// TodayResponse: 当日の状態（NONE / ACTIVE / COMPLETED）
type TodayResponse struct {
	Date       string              `json:"date"`
	State      string              `json:"state"`
	Attendance *AttendanceResponse `json:"attendance,omitempty"`
}

const (
	StateNone      = "none"
	StateActive    = "active"
	StateCompleted = "completed"
)

type ListQuery struct {
	UserID        *string
	CommunityID   *string
	On            *string
	From          *string
	To            *string
	LocationValid *bool
	Limit         int
	Offset        int
	Sort          string
}

type ListResponse struct {
	Items  []AttendanceResponse `json:"items"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

type StatsRequest struct {
	From  string // YYYY-MM-DD
	To    string // YYYY-MM-DD
	Limit int
}

type StatsRow struct {
	UserID       string `json:"user_id"`
	Count        int64  `json:"count"`
	InvalidCount int64  `json:"invalid_count"`
}

type SummaryRequest struct {
	From   string
	To     string
	UserID *string
}

// Summary: 期間集計（analytics 画面）
type Summary struct {
	From                 string  `json:"from"`
	To                   string  `json:"to"`
	Total                int64   `json:"total"`
	Valid                int64   `json:"valid"`
	Invalid              int64   `json:"invalid"`
	Completed            int64   `json:"completed"`
	ActiveUsers          int64   `json:"active_users"` // distinct users with a record
	Shifts               int64   `json:"shifts"`       // scheduled shifts in the range
	AverageWorkedMinutes float64 `json:"average_worked_minutes"`
}

// DayCounts feeds the dashboard.
type DayCounts struct {
	CheckedIn int64 // distinct users with a record that day
	OnDuty    int64 // distinct users with an active record
}
