package attendance

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"AEGIS-backend/internal/alerts"
	"AEGIS-backend/internal/community"
	"AEGIS-backend/internal/geofence"
	"AEGIS-backend/internal/location"
)

// ===== Clock & ID =====

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ===== Collaborators =====

type Locator interface {
	Acquire(ctx context.Context, userID string, src location.Source) (location.Fix, error)
	Report(ctx context.Context, userID string, fix location.Fix) (location.Fix, error)
	MaxAge() time.Duration
}

// ZoneResolver is satisfied by community.Service.
type ZoneResolver interface {
	Zone(ctx context.Context, communityID string) (geofence.Zone, error)
}

// ShiftCounter is satisfied by schedule.Service.
type ShiftCounter interface {
	CountShifts(ctx context.Context, from, to string, userID *string) (int64, error)
}

// AccountDirectory is satisfied by auth.Service.
type AccountDirectory interface {
	Community(ctx context.Context, userID string) (string, error)
}

type Deps struct {
	Store    RecordStore
	Locator  Locator
	Zones    ZoneResolver
	Accounts AccountDirectory
	// Shifts adds the scheduled shift count to Summary when set.
	Shifts ShiftCounter
	// Fallback is used when neither the request nor the account names a community.
	Fallback *geofence.Zone
	Location *time.Location
	Metrics  *Metrics
	Log      *zap.Logger
	Clock    Clock
	IDGen    IDGen
}

// ===== Service =====

type Service struct {
	store    RecordStore
	locator  Locator
	zones    ZoneResolver
	accounts AccountDirectory
	shifts   ShiftCounter
	fallback *geofence.Zone
	loc      *time.Location
	metrics  *Metrics
	log      *zap.Logger
	clock    Clock
	id       IDGen
}

func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		locator:  d.Locator,
		zones:    d.Zones,
		accounts: d.Accounts,
		shifts:   d.Shifts,
		fallback: d.Fallback,
		loc:      d.Location,
		metrics:  d.Metrics,
		log:      d.Log,
		clock:    d.Clock,
		id:       d.IDGen,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.id == nil {
		s.id = ulidGen{}
	}
	return s
}

// RecordCheckin stamps a new ACTIVE record. Validity is decided here, once, and
// an out-of-zone record is persisted together with its alert or not at all.
func (s *Service) RecordCheckin(ctx context.Context, userID string, communityID *string, fix location.Fix, zone geofence.Zone, note *string) (Attendance, error) {
	now := s.clock.Now().UTC()
	res := geofence.Check(fix.Coordinate, zone)

	a := Attendance{
		ID:                s.id.NewULID(now),
		UserID:            userID,
		CommunityID:       communityID,
		AttendedOn:        s.day(now),
		CheckinAt:         now,
		CheckinCoordinate: fix.Coordinate,
		LocationValid:     res.Within,
		DistanceMeters:    finiteOrNil(res.DistanceMeters),
		Note:              trimmedOrNil(note),
	}
	if fix.AccuracyMeters > 0 {
		acc := fix.AccuracyMeters
		a.CheckinAccuracy = &acc
	}

	var alert *alerts.Alert
	if !a.LocationValid {
		al := alerts.NewLocationInvalid(s.id.NewULID(now), userID, a.ID,
			fix.Coordinate.Latitude, fix.Coordinate.Longitude, s.localDate(now), now)
		alert = &al
	}

	if err := s.store.InsertCheckin(ctx, &a, alert); err != nil {
		s.log.Error("check-in not persisted", zap.String("user_id", userID), zap.Error(err))
		return Attendance{}, ErrPersistence("check-in could not be saved")
	}

	s.metrics.observeCheckin(a.LocationValid, a.DistanceMeters)
	fields := []zap.Field{
		zap.String("attendance_id", a.ID),
		zap.String("user_id", userID),
		zap.Bool("location_valid", a.LocationValid),
	}
	if a.DistanceMeters != nil {
		fields = append(fields, zap.Float64("distance_m", *a.DistanceMeters))
	}
	if alert != nil {
		fields = append(fields, zap.String("alert_id", alert.ID))
	}
	s.log.Info("check-in recorded", fields...)
	return a, nil
}

// RecordCheckout completes rec. The zone is not checked again at checkout.
func (s *Service) RecordCheckout(ctx context.Context, rec Attendance, fix location.Fix) (Attendance, error) {
	if !rec.Active() {
		return Attendance{}, ErrNoActiveSession()
	}
	now := s.clock.Now().UTC()
	n, err := s.store.CompleteCheckout(ctx, rec.ID, now, fix.Coordinate)
	if err != nil {
		s.log.Error("checkout not persisted", zap.String("attendance_id", rec.ID), zap.Error(err))
		return Attendance{}, ErrPersistence("checkout could not be saved")
	}
	if n == 0 {
		// 同時に別リクエストが簽退済み
		return Attendance{}, ErrNoActiveSession()
	}

	coord := fix.Coordinate
	rec.CheckoutAt = &now
	rec.CheckoutCoordinate = &coord
	s.metrics.observeCheckout()
	s.log.Info("checkout recorded", zap.String("attendance_id", rec.ID), zap.String("user_id", rec.UserID))
	return rec, nil
}

// POST /locations
func (s *Service) ReportLocation(ctx context.Context, userID string, in LocationRequest) (LocationResponse, error) {
	if in.Latitude == nil || in.Longitude == nil {
		return LocationResponse{}, ErrInvalid("latitude and longitude are required")
	}
	fix, err := s.locator.Report(ctx, userID, toFix(*in.Latitude, *in.Longitude, in.Accuracy, in.CapturedAt))
	if errors.Is(err, location.ErrUnavailable) {
		return LocationResponse{}, ErrInvalid(err.Error())
	}
	if err != nil {
		s.log.Error("location not stored", zap.String("user_id", userID), zap.Error(err))
		return LocationResponse{}, ErrPersistence("location could not be saved")
	}
	return LocationResponse{
		Location:   fix.Coordinate,
		Accuracy:   fix.AccuracyMeters,
		CapturedAt: fix.CapturedAt,
		ValidUntil: fix.CapturedAt.Add(s.locator.MaxAge()),
	}, nil
}

// POST /attendances/checkin
func (s *Service) CheckIn(ctx context.Context, userID string, in CheckinRequest) (AttendanceResponse, error) {
	src, err := sourceFrom(in.Latitude, in.Longitude, in.Accuracy, in.CapturedAt)
	if err != nil {
		return AttendanceResponse{}, err
	}
	fix, err := s.acquire(ctx, userID, src)
	if err != nil {
		return AttendanceResponse{}, err
	}

	zone, communityID, err := s.resolveZone(ctx, userID, in.CommunityID)
	if err != nil {
		return AttendanceResponse{}, err
	}

	latest, err := s.store.LatestForUserOn(ctx, userID, s.day(s.clock.Now()))
	if err != nil {
		return AttendanceResponse{}, err
	}
	if latest != nil && latest.Active() {
		return AttendanceResponse{}, ErrConflict("already checked in; check out first")
	}

	a, err := s.RecordCheckin(ctx, userID, communityID, fix, zone, in.Note)
	if err != nil {
		return AttendanceResponse{}, err
	}
	return a.toDTO(), nil
}

// POST /attendances/checkout
func (s *Service) CheckOut(ctx context.Context, userID string, in CheckoutRequest) (AttendanceResponse, error) {
	src, err := sourceFrom(in.Latitude, in.Longitude, in.Accuracy, in.CapturedAt)
	if err != nil {
		return AttendanceResponse{}, err
	}
	fix, err := s.acquire(ctx, userID, src)
	if err != nil {
		return AttendanceResponse{}, err
	}

	latest, err := s.store.LatestForUserOn(ctx, userID, s.day(s.clock.Now()))
	if err != nil {
		return AttendanceResponse{}, err
	}
	if latest == nil || !latest.Active() {
		return AttendanceResponse{}, ErrNoActiveSession()
	}

	a, err := s.RecordCheckout(ctx, *latest, fix)
	if err != nil {
		return AttendanceResponse{}, err
	}
	return a.toDTO(), nil
}

// POST /attendances/punch: ACTIVE なら簽退、それ以外は簽到
func (s *Service) Punch(ctx context.Context, userID string, in CheckinRequest) (PunchResponse, error) {
	latest, err := s.store.LatestForUserOn(ctx, userID, s.day(s.clock.Now()))
	if err != nil {
		return PunchResponse{}, err
	}
	if latest != nil && latest.Active() {
		res, err := s.CheckOut(ctx, userID, CheckoutRequest{
			Latitude:   in.Latitude,
			Longitude:  in.Longitude,
			Accuracy:   in.Accuracy,
			CapturedAt: in.CapturedAt,
		})
		if err != nil {
			return PunchResponse{}, err
		}
		return PunchResponse{Action: ActionCheckout, Attendance: res}, nil
	}
	res, err := s.CheckIn(ctx, userID, in)
	if err != nil {
		return PunchResponse{}, err
	}
	return PunchResponse{Action: ActionCheckin, Attendance: res}, nil
}

// GET /attendances/today
func (s *Service) Today(ctx context.Context, userID string) (TodayResponse, error) {
	today := s.day(s.clock.Now())
	latest, err := s.store.LatestForUserOn(ctx, userID, today)
	if err != nil {
		return TodayResponse{}, err
	}
	out := TodayResponse{Date: today, State: StateNone}
	if latest == nil {
		return out, nil
	}
	dto := latest.toDTO()
	out.Attendance = &dto
	if latest.Active() {
		out.State = StateActive
	} else {
		out.State = StateCompleted
	}
	return out, nil
}

// GET /attendances/:id
func (s *Service) Get(ctx context.Context, id string) (AttendanceResponse, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return AttendanceResponse{}, err
	}
	if a == nil {
		return AttendanceResponse{}, ErrNotFound("attendance not found")
	}
	return a.toDTO(), nil
}

// GET /attendances
func (s *Service) List(ctx context.Context, q ListQuery) (ListResponse, error) {
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	switch q.Sort {
	case SortCheckinAtDesc, SortCheckinAtAsc, SortAttendedOnDesc, SortAttendedOnAsc:
	default:
		return ListResponse{}, ErrInvalid("unknown sort")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	var err error
	if q.On, err = s.normalizeDay(q.On); err != nil {
		return ListResponse{}, ErrInvalid("on must be YYYY-MM-DD or 'today'")
	}
	if q.From, err = s.normalizeDay(q.From); err != nil {
		return ListResponse{}, ErrInvalid("from must be YYYY-MM-DD or 'today'")
	}
	if q.To, err = s.normalizeDay(q.To); err != nil {
		return ListResponse{}, ErrInvalid("to must be YYYY-MM-DD or 'today'")
	}

	rows, total, err := s.store.List(ctx, q)
	if err != nil {
		return ListResponse{}, err
	}
	out := ListResponse{Items: make([]AttendanceResponse, 0, len(rows)), Total: total, Limit: q.Limit, Offset: q.Offset}
	for i := 0; i < len(rows); i++ {
		out.Items = append(out.Items, rows[i].toDTO())
	}
	return out, nil
}

// GET /attendances/history: 直近 30 日・最大 20 件
func (s *Service) History(ctx context.Context, userID string) ([]AttendanceResponse, error) {
	now := s.clock.Now().In(s.loc)
	from := now.AddDate(0, 0, -(HistoryDays - 1)).Format(DateLayout)
	res, err := s.List(ctx, ListQuery{UserID: &userID, From: &from, Limit: HistoryLimit, Sort: SortCheckinAtDesc})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// GET /attendances/stats
func (s *Service) Stats(ctx context.Context, req StatsRequest) ([]StatsRow, error) {
	from, to, err := s.parseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}
	return s.store.Stats(ctx, from, to, req.Limit)
}

// GET /attendances/summary
func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	from, to, err := s.parseRange(req.From, req.To)
	if err != nil {
		return Summary{}, err
	}
	sum, err := s.store.Summary(ctx, from, to, req.UserID)
	if err != nil {
		return Summary{}, err
	}
	if s.shifts != nil {
		n, err := s.shifts.CountShifts(ctx, from, to, req.UserID)
		if err != nil {
			return Summary{}, err
		}
		sum.Shifts = n
	}
	return sum, nil
}

// CountToday feeds the dashboard.
func (s *Service) CountToday(ctx context.Context) (DayCounts, error) {
	return s.store.CountOn(ctx, s.day(s.clock.Now()))
}

// ===== helpers =====

func (s *Service) acquire(ctx context.Context, userID string, src location.Source) (location.Fix, error) {
	fix, err := s.locator.Acquire(ctx, userID, src)
	if err == nil {
		return fix, nil
	}
	if errors.Is(err, location.ErrUnavailable) {
		s.metrics.observeUnavailable()
		s.log.Warn("location unavailable", zap.String("user_id", userID), zap.Error(err))
		return location.Fix{}, ErrLocationUnavailable(err.Error())
	}
	return location.Fix{}, err
}

// resolveZone: リクエスト → アカウントの所属社区 → 設定のフォールバック
func (s *Service) resolveZone(ctx context.Context, userID string, requested *string) (geofence.Zone, *string, error) {
	id := ""
	if requested != nil {
		id = strings.TrimSpace(*requested)
	}
	if id == "" && s.accounts != nil {
		cid, err := s.accounts.Community(ctx, userID)
		if err != nil {
			return geofence.Zone{}, nil, err
		}
		id = cid
	}
	if id == "" {
		if s.fallback != nil {
			return *s.fallback, nil, nil
		}
		return geofence.Zone{}, nil, ErrInvalid("no check-in zone is configured for this user")
	}
	if s.zones == nil {
		return geofence.Zone{}, nil, ErrInvalid("community zones are not available")
	}

	zone, err := s.zones.Zone(ctx, id)
	if err != nil {
		var ce *community.APIError
		if errors.As(err, &ce) {
			switch ce.Code {
			case community.CodeNotFound:
				return geofence.Zone{}, nil, ErrNotFound("community not found")
			case community.CodeInvalidArgument:
				return geofence.Zone{}, nil, ErrInvalid(ce.Message)
			}
		}
		return geofence.Zone{}, nil, err
	}
	return zone, &id, nil
}

func (s *Service) day(t time.Time) string { return t.In(s.loc).Format(DateLayout) }

// localDate is the local calendar day of t as UTC midnight, the form DATE columns are written in.
func (s *Service) localDate(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) parseDay(v string) (string, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "today" {
		return s.day(s.clock.Now()), nil
	}
	t, err := time.ParseInLocation(DateLayout, v, s.loc)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

func (s *Service) normalizeDay(p *string) (*string, error) {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil, nil
	}
	d, err := s.parseDay(*p)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) parseRange(fromStr, toStr string) (string, string, error) {
	from, err := s.parseDay(fromStr)
	if err != nil {
		return "", "", ErrInvalid("from must be YYYY-MM-DD")
	}
	to, err := s.parseDay(toStr)
	if err != nil {
		return "", "", ErrInvalid("to must be YYYY-MM-DD")
	}
	if to < from {
		return "", "", ErrInvalid("to must be >= from")
	}
	return from, to, nil
}

// sourceFrom: 座標が揃っていればリクエスト由来の位置、どちらも無ければ nil（キャッシュ利用）
func sourceFrom(lat, lng, acc *float64, capturedAt *time.Time) (location.Source, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, ErrInvalid("latitude and longitude must be given together")
	}
	return location.StaticSource(toFix(*lat, *lng, acc, capturedAt)), nil
}

func toFix(lat, lng float64, acc *float64, capturedAt *time.Time) location.Fix {
	fix := location.Fix{Coordinate: geofence.Coordinate{Latitude: lat, Longitude: lng}}
	if acc != nil {
		fix.AccuracyMeters = *acc
	}
	if capturedAt != nil {
		fix.CapturedAt = *capturedAt
	}
	return fix
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
