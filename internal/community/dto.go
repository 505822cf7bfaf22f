package community

import "time"

type UpsertRequest struct {
	Name                string   `json:"name" binding:"required"`
	Code                string   `json:"code" binding:"required"`
	Type                string   `json:"type"`
	Status              string   `json:"status"` // 空なら active
	Address             string   `json:"address"`
	ContactPhone        string   `json:"contact_phone"`
	ContactEmail        string   `json:"contact_email"`
	Manager             string   `json:"manager"`
	Description         *string  `json:"description,omitempty"`
	Notes               *string  `json:"notes,omitempty"`
	Latitude            *float64 `json:"latitude" binding:"required"`
	Longitude           *float64 `json:"longitude" binding:"required"`
	CheckInRadiusMeters *float64 `json:"checkin_radius_meters" binding:"required"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CommunityResponse struct {
	ID                  string    `json:"community_id"`
	Name                string    `json:"name"`
	Code                string    `json:"code"`
	Type                string    `json:"type"`
	Status              string    `json:"status"`
	Address             string    `json:"address"`
	ContactPhone        string    `json:"contact_phone"`
	ContactEmail        string    `json:"contact_email"`
	Manager             string    `json:"manager"`
	Description         *string   `json:"description,omitempty"`
	Notes               *string   `json:"notes,omitempty"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	CheckInRadiusMeters float64   `json:"checkin_radius_meters"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toResponse(c Community) CommunityResponse {
	return CommunityResponse{
		ID:                  c.ID,
		Name:                c.Name,
		Code:                c.Code,
		Type:                c.Type,
		Status:              c.Status,
		Address:             c.Address,
		ContactPhone:        c.ContactPhone,
		ContactEmail:        c.ContactEmail,
		Manager:             c.Manager,
		Description:         c.Description,
		Notes:               c.Notes,
		Latitude:            c.Latitude,
		Longitude:           c.Longitude,
		CheckInRadiusMeters: c.CheckInRadiusMeters,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}
