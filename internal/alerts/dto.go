package alerts

import "time"

type AlertResponse struct {
	ID           string     `json:"alert_id"`
	Type         string     `json:"type"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	UserID       string     `json:"user_id"`
	AttendanceID *string    `json:"attendance_id,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	AlertedOn    string     `json:"alerted_on"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy   *string    `json:"resolved_by,omitempty"`
}

type ListQuery struct {
	Status string `form:"status"`
	UserID string `form:"user_id"`
	From   string `form:"from"` // YYYY-MM-DD
	To     string `form:"to"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

type ListResponse struct {
	Items []AlertResponse `json:"items"`
	Total int             `json:"total"`
}

func toResponse(a Alert) AlertResponse {
	return AlertResponse{
		ID:           a.ID,
		Type:         a.Type,
		Title:        a.Title,
		Description:  a.Description,
		UserID:       a.UserID,
		AttendanceID: a.AttendanceID,
		Latitude:     a.Latitude,
		Longitude:    a.Longitude,
		Priority:     a.Priority,
		Status:       a.Status,
		AlertedOn:    a.AlertedOn.Format(dateLayout),
		CreatedAt:    a.CreatedAt,
		ResolvedAt:   a.ResolvedAt,
		ResolvedBy:   a.ResolvedBy,
	}
}
