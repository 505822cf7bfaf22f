package schedule

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// -------------- Error model & mapping --------------

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }

// -------------- Clock & ID --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// -------------- Service --------------

// maxRangeDays bounds List so a single query never scans a whole year of shifts.
const maxRangeDays = 62

type Service struct {
	store ShiftStore
	clock Clock
	id    IDGen
	loc   *time.Location
	log   *zap.Logger
}

func NewService(store ShiftStore, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, clock: realClock{}, id: ulidGen{}, loc: loc, log: log}
}

func (s *Service) Create(ctx context.Context, actor string, req UpsertRequest) (ShiftResponse, error) {
	sh, err := validate(req)
	if err != nil {
		return ShiftResponse{}, err
	}
	now := s.clock.Now()
	sh.ID = s.id.NewULID(now)
	sh.CreatedBy = actor
	sh.CreatedAt, sh.UpdatedAt = now, now

	if err := s.store.Create(ctx, &sh); err != nil {
		return ShiftResponse{}, err
	}
	s.log.Info("shift created", zap.String("shift_id", sh.ID), zap.String("staff_id", sh.StaffID), zap.String("date", sh.Date))
	return toResponse(sh), nil
}

func (s *Service) Update(ctx context.Context, actor, id string, req UpsertRequest) (ShiftResponse, error) {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return ShiftResponse{}, err
	}
	if cur == nil {
		return ShiftResponse{}, ErrNotFound("shift not found")
	}
	sh, err := validate(req)
	if err != nil {
		return ShiftResponse{}, err
	}
	sh.ID = id
	sh.CreatedBy, sh.CreatedAt = cur.CreatedBy, cur.CreatedAt
	sh.UpdatedBy = &actor
	sh.UpdatedAt = s.clock.Now()

	n, err := s.store.Update(ctx, &sh)
	if err != nil {
		return ShiftResponse{}, err
	}
	if n == 0 {
		return ShiftResponse{}, ErrNotFound("shift not found")
	}
	s.log.Info("shift updated", zap.String("shift_id", id), zap.String("by", actor))
	return toResponse(sh), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("shift not found")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (ShiftResponse, error) {
	sh, err := s.store.Get(ctx, id)
	if err != nil {
		return ShiftResponse{}, err
	}
	if sh == nil {
		return ShiftResponse{}, ErrNotFound("shift not found")
	}
	return toResponse(*sh), nil
}

// List: from/to 未指定なら今週
func (s *Service) List(ctx context.Context, q ListQuery) ([]ShiftResponse, error) {
	from, to := strings.TrimSpace(q.From), strings.TrimSpace(q.To)
	if from == "" && to == "" {
		start := weekStart(s.clock.Now().In(s.loc))
		from, to = start.Format(DateLayout), start.AddDate(0, 0, 6).Format(DateLayout)
	}
	fromT, err := time.Parse(DateLayout, from)
	if err != nil {
		return nil, ErrInvalid("from must be YYYY-MM-DD")
	}
	toT, err := time.Parse(DateLayout, to)
	if err != nil {
		return nil, ErrInvalid("to must be YYYY-MM-DD")
	}
	if toT.Before(fromT) {
		return nil, ErrInvalid("to must be >= from")
	}
	if toT.Sub(fromT) > maxRangeDays*24*time.Hour {
		return nil, ErrInvalid(fmt.Sprintf("range must be at most %d days", maxRangeDays))
	}

	f := Filter{From: from, To: to}
	if v := strings.TrimSpace(q.StaffID); v != "" {
		f.StaffID = &v
	}
	if v := strings.TrimSpace(q.CommunityID); v != "" {
		f.CommunityID = &v
	}
	items, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]ShiftResponse, 0, len(items))
	for _, sh := range items {
		out = append(out, toResponse(sh))
	}
	return out, nil
}

// CountShifts counts shifts dated from..to, optionally for one staff member.
// The range is not bounded like List since only a count is returned.
func (s *Service) CountShifts(ctx context.Context, from, to string, staffID *string) (int64, error) {
	if _, err := time.Parse(DateLayout, from); err != nil {
		return 0, ErrInvalid("from must be YYYY-MM-DD")
	}
	if _, err := time.Parse(DateLayout, to); err != nil {
		return 0, ErrInvalid("to must be YYYY-MM-DD")
	}
	f := Filter{From: from, To: to}
	if staffID != nil && strings.TrimSpace(*staffID) != "" {
		v := strings.TrimSpace(*staffID)
		f.StaffID = &v
	}
	n, err := s.store.Count(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("count shifts: %w", err)
	}
	return n, nil
}

// Week groups the Monday-start week containing date (empty = today) by day.
func (s *Service) Week(ctx context.Context, date, staffID string) (WeekResponse, error) {
	day := s.clock.Now().In(s.loc)
	if date = strings.TrimSpace(date); date != "" {
		t, err := time.Parse(DateLayout, date)
		if err != nil {
			return WeekResponse{}, ErrInvalid("date must be YYYY-MM-DD")
		}
		day = t
	}
	start := weekStart(day)
	end := start.AddDate(0, 0, 6)

	shifts, err := s.List(ctx, ListQuery{From: start.Format(DateLayout), To: end.Format(DateLayout), StaffID: staffID})
	if err != nil {
		return WeekResponse{}, err
	}

	out := WeekResponse{Start: start.Format(DateLayout), End: end.Format(DateLayout), Days: make([]DaySchedule, 7)}
	index := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		d := start.AddDate(0, 0, i).Format(DateLayout)
		out.Days[i] = DaySchedule{Date: d, Shifts: []ShiftResponse{}}
		index[d] = i
	}
	for _, sh := range shifts {
		if i, ok := index[sh.Date]; ok {
			out.Days[i].Shifts = append(out.Days[i].Shifts, sh)
		}
	}
	return out, nil
}

// -------------- helpers --------------

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validate(req UpsertRequest) (Shift, error) {
	sh := Shift{
		StaffID:     strings.TrimSpace(req.StaffID),
		CommunityID: req.CommunityID,
		Date:        strings.TrimSpace(req.Date),
		StartTime:   strings.TrimSpace(req.StartTime),
		EndTime:     strings.TrimSpace(req.EndTime),
		Position:    strings.TrimSpace(req.Position),
		Note:        req.Note,
	}
	if sh.StaffID == "" {
		return Shift{}, ErrInvalid("staff_id is required")
	}
	if _, err := time.Parse(DateLayout, sh.Date); err != nil {
		return Shift{}, ErrInvalid("date must be YYYY-MM-DD")
	}
	if !validClock(sh.StartTime, false) {
		return Shift{}, ErrInvalid("start_time must be HH:MM")
	}
	if !validClock(sh.EndTime, true) {
		return Shift{}, ErrInvalid("end_time must be HH:MM")
	}
	if clockMinutes(sh.StartTime) == clockMinutes(sh.EndTime) {
		return Shift{}, ErrInvalid("start_time and end_time must differ")
	}
	if !validPosition(sh.Position) {
		return Shift{}, ErrInvalid("position must be one of " + strings.Join(Positions, ", "))
	}
	return sh, nil
}

// validClock: "HH:MM" 24h。終了時刻のみ "24:00" 可
func validClock(v string, allow24 bool) bool {
	if allow24 && v == "24:00" {
		return true
	}
	if len(v) != 5 {
		return false
	}
	_, err := time.Parse(TimeLayout, v)
	return err == nil
}

func validPosition(p string) bool {
	for _, v := range Positions {
		if v == p {
			return true
		}
	}
	return false
}

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		default:
			return 500
		}
	}
	return 500
}
