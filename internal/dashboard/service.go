// Package dashboard aggregates the counters shown on the operations dashboard.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"AEGIS-backend/internal/alerts"
	"AEGIS-backend/internal/attendance"
)

type AttendanceCounter interface {
	CountToday(ctx context.Context) (attendance.DayCounts, error)
}

type AlertFeed interface {
	CountActive(ctx context.Context) (int64, error)
	Recent(ctx context.Context, limit int) ([]alerts.AlertResponse, error)
}

type Summary struct {
	ActiveStaff     int64                  `json:"active_staff"`     // 勤務中
	TodayAttendance int64                  `json:"today_attendance"` // 本日出勤者数
	ActiveAlerts    int64                  `json:"active_alerts"`
	RecentAlerts    []alerts.AlertResponse `json:"recent_alerts"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

type Service struct {
	att AttendanceCounter
	al  AlertFeed
	now func() time.Time
	log *zap.Logger
}

func NewService(att AttendanceCounter, al AlertFeed, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{att: att, al: al, now: func() time.Time { return time.Now().UTC() }, log: log}
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	counts, err := s.att.CountToday(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count attendance: %w", err)
	}
	active, err := s.al.CountActive(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count alerts: %w", err)
	}
	recent, err := s.al.Recent(ctx, alerts.RecentLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("recent alerts: %w", err)
	}
	if recent == nil {
		recent = []alerts.AlertResponse{}
	}
	return Summary{
		ActiveStaff:     counts.OnDuty,
		TodayAttendance: counts.CheckedIn,
		ActiveAlerts:    active,
		RecentAlerts:    recent,
		GeneratedAt:     s.now(),
	}, nil
}
