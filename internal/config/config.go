package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/skyunix/goinspur/internal/geo"
	"github.com/skyunix/goinspur/internal/models"
	"github.com/skyunix/goinspur/internal/security"
)

const DefaultPath = "conf/config.yml"

type Config struct {
	Path           string         `mapstructure:"-"`
	BaseURL        string         `mapstructure:"base_url"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	MaxAttempts    int            `mapstructure:"max_attempts"`
	User           UserConfig     `mapstructure:"user_config"`
	Schedule       ScheduleConfig `mapstructure:"schedule"`
}

type UserConfig struct {
	DefaultPassword string      `mapstructure:"default_password"`
	DefaultLocation string      `mapstructure:"default_location"`
	App             AppSettings `mapstructure:"app_settings"`
}

type AppSettings struct {
	AutoQueryAfterCheck bool   `mapstructure:"auto_query_after_check"`
	RandomRadiusMeters  *int   `mapstructure:"random_radius_meters"`
	LogLevel            string `mapstructure:"log_level"`
	LogDir              string `mapstructure:"log_dir"`
}

type ScheduleConfig struct {
	CheckIn  string `mapstructure:"checkin"`
	CheckOut string `mapstructure:"checkout"`
}

// Load reads the YAML file at path. A missing file yields the defaults.
// Settings can be overridden with GOINSPUR_* environment variables, e.g.
// GOINSPUR_BASE_URL or GOINSPUR_USER_CONFIG_APP_SETTINGS_LOG_LEVEL.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GOINSPUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Path = path

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("max_attempts", 3)

	v.SetDefault("user_config.default_password", "")
	v.SetDefault("user_config.default_location", "")
	v.SetDefault("user_config.app_settings.auto_query_after_check", true)
	v.SetDefault("user_config.app_settings.log_level", "info")
	v.SetDefault("user_config.app_settings.log_dir", "logs")

	v.SetDefault("schedule.checkin", "")
	v.SetDefault("schedule.checkout", "")
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base_url must be set in %s or GOINSPUR_BASE_URL", c.Path)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.User.DefaultLocation != "" {
		if _, err := ParseLocation(c.User.DefaultLocation); err != nil {
			return fmt.Errorf("user_config.default_location: %w", err)
		}
	}
	return nil
}

// DefaultPasswordHash returns the configured default password as a
// fingerprint. Plaintext values are fingerprinted.
func (c *Config) DefaultPasswordHash() string {
	return security.EnsureFingerprint(strings.TrimSpace(c.User.DefaultPassword))
}

// DefaultPoint returns the configured search location, if any.
func (c *Config) DefaultPoint() (models.Point, bool) {
	p, err := ParseLocation(c.User.DefaultLocation)
	if err != nil {
		return models.Point{}, false
	}
	return p, true
}

// RadiusMeters returns the jitter radius, nil when jitter is disabled.
func (c *Config) RadiusMeters() *float64 {
	return geo.Radius(c.User.App.RandomRadiusMeters)
}

// ParseLocation parses "longitude,latitude".
func ParseLocation(s string) (models.Point, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return models.Point{}, fmt.Errorf("expected \"longitude,latitude\", got %q", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Point{}, fmt.Errorf("parse longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Point{}, fmt.Errorf("parse latitude: %w", err)
	}
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return models.Point{}, fmt.Errorf("coordinates out of range: %v,%v", lng, lat)
	}
	return models.Point{Longitude: lng, Latitude: lat}, nil
}

// FormatLocation is the inverse of ParseLocation.
func FormatLocation(p models.Point) string {
	return p.LongitudeString() + "," + p.LatitudeString()
}
