// Package location acquires the device position used for check-in and
// checkout. A fix comes either from the request itself or from the most
// recent position the device reported, as long as that report is fresh.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"AEGIS-backend/internal/geofence"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultMaxAge  = 5 * time.Minute

	// MaxClockSkew is how far a device clock may run ahead of the server.
	MaxClockSkew = 30 * time.Second
)

// ErrUnavailable: 位置が取得できない（権限拒否・タイムアウト・センサ異常・古すぎる）
var ErrUnavailable = errors.New("location unavailable")

// Fix is one position report from the device location sensor.
type Fix struct {
	Coordinate     geofence.Coordinate `json:"coordinate"`
	AccuracyMeters float64             `json:"accuracy_meters"`
	CapturedAt     time.Time           `json:"captured_at"`
}

type Source interface {
	Current(ctx context.Context) (Fix, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context) (Fix, error)

func (f SourceFunc) Current(ctx context.Context) (Fix, error) { return f(ctx) }

// StaticSource is a fix that arrived with the request body.
type StaticSource Fix

func (s StaticSource) Current(context.Context) (Fix, error) { return Fix(s), nil }

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Locator struct {
	cache   FixCache
	timeout time.Duration
	maxAge  time.Duration
	clock   Clock
	log     *zap.Logger
}

type Option func(*Locator)

func WithTimeout(d time.Duration) Option {
	return func(l *Locator) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithMaxAge(d time.Duration) Option {
	return func(l *Locator) {
		if d > 0 {
			l.maxAge = d
		}
	}
}

func WithClock(c Clock) Option { return func(l *Locator) { l.clock = c } }

func WithLogger(log *zap.Logger) Option { return func(l *Locator) { l.log = log } }

func NewLocator(cache FixCache, opts ...Option) *Locator {
	l := &Locator{
		cache:   cache,
		timeout: DefaultTimeout,
		maxAge:  DefaultMaxAge,
		clock:   realClock{},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Locator) MaxAge() time.Duration { return l.maxAge }

// Acquire returns a usable fix for userID. With a source, the source is polled
// under the locator timeout; without one, the last reported fix is reused if it
// is younger than the max age. Every failure is reported as ErrUnavailable.
func (l *Locator) Acquire(ctx context.Context, userID string, src Source) (Fix, error) {
	if src == nil {
		return l.cached(ctx, userID)
	}

	pollCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type result struct {
		fix Fix
		err error
	}
	ch := make(chan result, 1)
	go func() {
		fix, err := src.Current(pollCtx)
		ch <- result{fix: fix, err: err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-pollCtx.Done():
		return Fix{}, fmt.Errorf("%w: %v", ErrUnavailable, pollCtx.Err())
	}
	if res.err != nil {
		return Fix{}, fmt.Errorf("%w: %v", ErrUnavailable, res.err)
	}

	fix, err := l.accept(res.fix)
	if err != nil {
		return Fix{}, err
	}
	if err := l.cache.Put(ctx, userID, fix); err != nil {
		// キャッシュ失敗は打刻を止めない
		l.log.Warn("location cache put failed", zap.String("user_id", userID), zap.Error(err))
	}
	return fix, nil
}

// Report stores a device-reported fix so that a later check-in without
// coordinates can reuse it.
func (l *Locator) Report(ctx context.Context, userID string, fix Fix) (Fix, error) {
	fix, err := l.accept(fix)
	if err != nil {
		return Fix{}, err
	}
	if err := l.cache.Put(ctx, userID, fix); err != nil {
		return Fix{}, err
	}
	return fix, nil
}

func (l *Locator) cached(ctx context.Context, userID string) (Fix, error) {
	fix, ok, err := l.cache.Get(ctx, userID)
	if err != nil {
		l.log.Warn("location cache get failed", zap.String("user_id", userID), zap.Error(err))
		return Fix{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return Fix{}, fmt.Errorf("%w: no recent position reported", ErrUnavailable)
	}
	age := l.clock.Now().Sub(fix.CapturedAt)
	if age < -MaxClockSkew {
		return Fix{}, fmt.Errorf("%w: last position is timestamped in the future", ErrUnavailable)
	}
	if age > l.maxAge {
		return Fix{}, fmt.Errorf("%w: last position is older than %s", ErrUnavailable, l.maxAge)
	}
	return fix, nil
}

func (l *Locator) accept(fix Fix) (Fix, error) {
	if !fix.Coordinate.Valid() {
		return Fix{}, fmt.Errorf("%w: invalid coordinate", ErrUnavailable)
	}
	now := l.clock.Now()
	if fix.CapturedAt.IsZero() {
		fix.CapturedAt = now
	}
	if fix.CapturedAt.After(now.Add(MaxClockSkew)) {
		return Fix{}, fmt.Errorf("%w: position is timestamped in the future", ErrUnavailable)
	}
	// 許容範囲内の進みはサーバ時刻に揃える
	if fix.CapturedAt.After(now) {
		fix.CapturedAt = now
	}
	if now.Sub(fix.CapturedAt) > l.maxAge {
		return Fix{}, fmt.Errorf("%w: position is older than %s", ErrUnavailable, l.maxAge)
	}
	return fix, nil
}
