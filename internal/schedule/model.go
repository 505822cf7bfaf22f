package schedule

import "time"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// 勤務類型
var Positions = []string{"巡邏", "站崗", "值班", "訓練", "其他"}

// Shift: 1 勤務枠。EndTime < StartTime は日跨ぎ（夜勤）
type Shift struct {
	ID          string
	StaffID     string
	CommunityID *string
	Date        string // YYYY-MM-DD
	StartTime   string // HH:MM
	EndTime     string // HH:MM, "24:00" allowed
	Position    string
	Note        *string
	CreatedBy   string
	UpdatedBy   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Overnight reports whether the shift ends on the following day.
func (s Shift) Overnight() bool { return s.EndTime < s.StartTime }

// DurationMinutes: 日跨ぎは 24h を足す
func (s Shift) DurationMinutes() int {
	start, end := clockMinutes(s.StartTime), clockMinutes(s.EndTime)
	if end < start {
		end += 24 * 60
	}
	return end - start
}

type Filter struct {
	From        string
	To          string
	StaffID     *string
	CommunityID *string
}

func clockMinutes(hhmm string) int {
	if hhmm == "24:00" {
		return 24 * 60
	}
	t, err := time.Parse(TimeLayout, hhmm)
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}
