package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"AEGIS-backend/internal/alerts"
	"AEGIS-backend/internal/attendance"
	"AEGIS-backend/internal/community"
	"AEGIS-backend/internal/dashboard"
	"AEGIS-backend/internal/geofence"
	"AEGIS-backend/internal/location"
	"AEGIS-backend/internal/platform/auth"
	"AEGIS-backend/internal/platform/cache"
	"AEGIS-backend/internal/platform/db"
	"AEGIS-backend/internal/platform/logging"
	"AEGIS-backend/internal/platform/middleware"
	"AEGIS-backend/internal/schedule"
)

func main() {
	// 設定読み込み
	cfgPath := os.Getenv("AEGIS_CONFIG")
	if cfgPath == "" {
		cfgPath = db.DefaultConfigPath
	}
	cfg, err := db.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintln(os.Stderr, errors.Join(errs...))
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *db.Config, logger *zap.Logger) error {
	logger.Info("starting", zap.String("mode", cfg.Mode), zap.String("version", cfg.Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("connected to DB", zap.String("dbname", cfg.DB.DBName))

	if cfg.DB.Migrate {
		if err := db.Migrate(ctx, conn); err != nil {
			return err
		}
		logger.Info("schema migrated")
	}

	rc, err := cache.Open(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var (
		fixes location.FixCache   = location.NewMemoryCache()
		zones community.ZoneCache = community.NewMemoryZoneCache(cfg.Attendance.ZoneCacheTTL)
	)
	if rc != nil {
		defer rc.Close()
		fixes = location.NewRedisCache(rc, cfg.Attendance.LocationMaxAge)
		zones = community.NewRedisZoneCache(rc, cfg.Attendance.ZoneCacheTTL)
		logger.Info("redis cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	fallback, err := fallbackZone(cfg.Attendance.FallbackZone)
	if err != nil {
		return err
	}

	// メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := attendance.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	// サービス組み立て
	secret := []byte(cfg.Auth.JWTSecret)
	authSvc := auth.NewService(auth.NewStore(conn), secret, cfg.Auth.TokenTTL, logger.Named("auth"))
	alertStore := alerts.NewStore(conn)
	alertSvc := alerts.NewService(alertStore, logger.Named("alerts"))
	communitySvc := community.NewService(community.NewStore(conn), zones, logger.Named("community"))
	scheduleSvc := schedule.NewService(schedule.NewStore(conn), cfg.Location(), logger.Named("schedule"))
	attendanceSvc := attendance.NewService(attendance.Deps{
		Store: attendance.NewStore(conn, alertStore),
		Locator: location.NewLocator(fixes,
			location.WithTimeout(cfg.Attendance.LocationTimeout),
			location.WithMaxAge(cfg.Attendance.LocationMaxAge),
			location.WithLogger(logger.Named("location")),
		),
		Zones:    communitySvc,
		Accounts: authSvc,
		Shifts:   scheduleSvc,
		Fallback: fallback,
		Location: cfg.Location(),
		Metrics:  metrics,
		Log:      logger.Named("attendance"),
	})
	dashboardSvc := dashboard.NewService(attendanceSvc, alertSvc, logger.Named("dashboard"))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AccessLog(logger.Named("http")), middleware.Recovery(logger))
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		origins := cfg.Server.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", "Location", middleware.RequestIDHeader},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := conn.PingContext(pingCtx); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterPublicRoutes(api, authSvc, middleware.NewIPRateLimiter(cfg.Auth.LoginRatePerMinute).Middleware())

	protected := api.Group("")
	protected.Use(auth.RequireAuth(secret))
	auth.RegisterRoutes(protected, authSvc)
	alerts.RegisterRoutes(protected, alertSvc)
	community.RegisterRoutes(protected, communitySvc)
	attendance.RegisterRoutes(protected, attendanceSvc)
	schedule.RegisterRoutes(protected, scheduleSvc)
	dashboard.RegisterRoutes(protected, dashboardSvc)

	if dir := cfg.Server.PublicDir; dir != "" {
		r.NoRoute(spaFallback(os.DirFS(dir)))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Mode == "release" {
			// TLS設定
			certFile := fmt.Sprintf("config/tls/release/%s", cfg.Certificate.Cert)
			keyFile := fmt.Sprintf("config/tls/release/%s", cfg.Certificate.Key)
			logger.Info("listening", zap.String("addr", "https://0.0.0.0"+cfg.Server.Addr))
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			logger.Info("listening", zap.String("addr", "http://0.0.0.0"+cfg.Server.Addr))
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func fallbackZone(z *db.ZoneConfig) (*geofence.Zone, error) {
	if z == nil {
		return nil, nil
	}
	zone, err := geofence.NewZone(geofence.Coordinate{Latitude: *z.Latitude, Longitude: *z.Longitude}, *z.RadiusMeters)
	if err != nil {
		return nil, fmt.Errorf("attendance.fallback_zone: %w", err)
	}
	return &zone, nil
}

// spaFallback serves the built frontend and falls back to index.html for client routes.
func spaFallback(fsys fs.FS) gin.HandlerFunc {
	fileFS := http.FS(fsys)
	return func(c *gin.Context) {
		// API は対象外
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "no such endpoint"}})
			return
		}

		reqPath := strings.TrimPrefix(c.Request.URL.Path, "/")
		if reqPath == "" {
			reqPath = "index.html"
		}

		// 実ファイルがあるならそれを返す（Content-Type を推測、キャッシュ付与）
		if f, err := fileFS.Open(reqPath); err == nil {
			defer f.Close()
			fileInfo, err := f.Stat()
			if err == nil && !fileInfo.IsDir() {
				if ct := mime.TypeByExtension(path.Ext(reqPath)); ct != "" {
					c.Header("Content-Type", ct)
				}
				// index.html 以外はキャッシュ（SPAの基本運用）
				if !strings.HasSuffix(reqPath, "index.html") {
					c.Header("Cache-Control", "public, max-age=86400, immutable")
				}
				http.ServeContent(c.Writer, c.Request, reqPath, fileInfo.ModTime(), f)
				return
			}
		}

		// なければ index.html にフォールバック
		if idx, err := fileFS.Open("index.html"); err == nil {
			defer idx.Close()
			c.Header("Content-Type", "text/html; charset=utf-8")
			if fileInfo, err := idx.Stat(); err == nil {
				http.ServeContent(c.Writer, c.Request, "index.html", fileInfo.ModTime(), idx)
			} else {
				c.Status(http.StatusInternalServerError)
			}
			return
		}

		c.Status(http.StatusNotFound)
	}
}
