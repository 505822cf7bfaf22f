package community

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Community: 警備対象の社区。中心座標と打卡半径が GeofenceZone になる
type Community struct {
	ID                  string
	Name                string
	Code                string
	Type                string
	Status              string
	Address             string
	ContactPhone        string
	ContactEmail        string
	Manager             string
	Description         *string
	Notes               *string
	Latitude            float64
	Longitude           float64
	CheckInRadiusMeters float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
