package db

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config/config.yaml"

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"user"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"dbname"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	Migrate      bool   `yaml:"migrate"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	PublicDir   string   `yaml:"public_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
	LoginRatePerMinute int           `yaml:"login_rate_per_minute"`
}

// ZoneConfig is the explicit fallback zone for accounts without a community.
// All three fields are required when the block is present.
type ZoneConfig struct {
	Latitude     *float64 `yaml:"latitude"`
	Longitude    *float64 `yaml:"longitude"`
	RadiusMeters *float64 `yaml:"radius_meters"`
}

type AttendanceConfig struct {
	Timezone        string        `yaml:"timezone"`
	LocationTimeout time.Duration `yaml:"location_timeout"`
	LocationMaxAge  time.Duration `yaml:"location_max_age"`
	ZoneCacheTTL    time.Duration `yaml:"zone_cache_ttl"`
	FallbackZone    *ZoneConfig   `yaml:"fallback_zone"`
}

type Config struct {
	Version     string           `yaml:"version"`
	Mode        string           `yaml:"mode"`
	Server      ServerConfig     `yaml:"server"`
	DB          DatabaseConfig   `yaml:"database"`
	Certificate Certs            `yaml:"certificate"`
	Redis       RedisConfig      `yaml:"redis"`
	Log         LogConfig        `yaml:"log"`
	Auth        AuthConfig       `yaml:"auth"`
	Attendance  AttendanceConfig `yaml:"attendance"`
}

var (
	ErrInvalidMode        = errors.New("mode must be dev or release")
	ErrMissingDBHost      = errors.New("database.host is required")
	ErrMissingDBName      = errors.New("database.dbname is required")
	ErrMissingJWTSecret   = errors.New("auth.jwt_secret (or JWT_SECRET) is required")
	ErrMissingRedisAddr   = errors.New("redis.addr is required when redis is enabled")
	ErrIncompleteZone     = errors.New("attendance.fallback_zone needs latitude, longitude and radius_meters")
	ErrInvalidTimezone    = errors.New("attendance.timezone is not a valid IANA zone")
	ErrMissingCertificate = errors.New("certificate.cert and certificate.key are required in release mode")
)

// LoadConfig: YAML → デフォルト補完 → 環境変数で上書き
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(c *Config) {
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8443"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.LoginRatePerMinute <= 0 {
		c.Auth.LoginRatePerMinute = 10
	}
	if c.Attendance.Timezone == "" {
		c.Attendance.Timezone = "UTC"
	}
	if c.Attendance.LocationTimeout <= 0 {
		c.Attendance.LocationTimeout = 10 * time.Second
	}
	if c.Attendance.LocationMaxAge <= 0 {
		c.Attendance.LocationMaxAge = 5 * time.Minute
	}
	if c.Attendance.ZoneCacheTTL <= 0 {
		c.Attendance.ZoneCacheTTL = time.Minute
	}
}

func applyEnv(c *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("AEGIS_MODE", &c.Mode)
	setString("DB_HOST", &c.DB.Host)
	setString("DB_USER", &c.DB.Username)
	setString("DB_PASSWORD", &c.DB.Password)
	setString("DB_NAME", &c.DB.DBName)
	setString("JWT_SECRET", &c.Auth.JWTSecret)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("LOG_LEVEL", &c.Log.Level)

	if v := os.Getenv("DB_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT must be an integer: %w", err)
		}
		c.DB.Port = p
	}
	return nil
}

// Validate returns every configuration problem at once.
func (c *Config) Validate() []error {
	var errs []error
	if c.Mode != "dev" && c.Mode != "release" {
		errs = append(errs, ErrInvalidMode)
	}
	if c.DB.Host == "" {
		errs = append(errs, ErrMissingDBHost)
	}
	if c.DB.DBName == "" {
		errs = append(errs, ErrMissingDBName)
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, ErrMissingRedisAddr)
	}
	if z := c.Attendance.FallbackZone; z != nil && (z.Latitude == nil || z.Longitude == nil || z.RadiusMeters == nil) {
		errs = append(errs, ErrIncompleteZone)
	}
	if _, err := time.LoadLocation(c.Attendance.Timezone); err != nil {
		errs = append(errs, ErrInvalidTimezone)
	}
	if c.Mode == "release" && (c.Certificate.Cert == "" || c.Certificate.Key == "") {
		errs = append(errs, ErrMissingCertificate)
	}
	return errs
}

// Location resolves the attendance timezone; Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Attendance.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
