package schedule

import "time"

type UpsertRequest struct {
	StaffID     string  `json:"staff_id" binding:"required"`
	CommunityID *string `json:"community_id,omitempty"`
	Date        string  `json:"date" binding:"required"`       // YYYY-MM-DD
	StartTime   string  `json:"start_time" binding:"required"` // HH:MM
	EndTime     string  `json:"end_time" binding:"required"`   // HH:MM
	Position    string  `json:"position" binding:"required"`
	Note        *string `json:"note,omitempty"`
}

type ShiftResponse struct {
	ID              string    `json:"shift_id"`
	StaffID         string    `json:"staff_id"`
	CommunityID     *string   `json:"community_id,omitempty"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Overnight       bool      `json:"overnight"`
	DurationMinutes int       `json:"duration_minutes"`
	Position        string    `json:"position"`
	Note            *string   `json:"note,omitempty"`
	CreatedBy       string    `json:"created_by"`
	UpdatedBy       *string   `json:"updated_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ListQuery struct {
	From        string `form:"from"`
	To          string `form:"to"`
	StaffID     string `form:"staff_id"`
	CommunityID string `form:"community_id"`
}

type DaySchedule struct {
	Date   string          `json:"date"`
	Shifts []ShiftResponse `json:"shifts"`
}

// WeekResponse: 月曜始まりの 7 日分
type WeekResponse struct {
	Start string        `json:"start"`
	End   string        `json:"end"`
	Days  []DaySchedule `json:"days"`
}

func toResponse(s Shift) ShiftResponse {
	return ShiftResponse{
		ID:              s.ID,
		StaffID:         s.StaffID,
		CommunityID:     s.CommunityID,
		Date:            s.Date,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Overnight:       s.Overnight(),
		DurationMinutes: s.DurationMinutes(),
		Position:        s.Position,
		Note:            s.Note,
		CreatedBy:       s.CreatedBy,
		UpdatedBy:       s.UpdatedBy,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}
