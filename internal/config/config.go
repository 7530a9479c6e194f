package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen           = "127.0.0.1:8080"
	defaultTimezone         = "Asia/Kolkata"
	defaultAlertsRefresh    = "*/15 * * * *"
	defaultReminderCheck    = "*/5 * * * *"
	defaultCacheKey         = "wedding-alerts-cache"
	defaultCachePath        = "./var/alerts-cache.json"
	defaultBackupCollection = "rsvps"
	defaultTokensCollection = "notification_tokens"
	defaultHTTPTimeout      = 15 * time.Second
	defaultBackupTimeout    = 20 * time.Second
	defaultEventLead        = 30 * time.Minute
	defaultWeatherTTL       = 10 * time.Minute
	defaultWeatherURL       = "https://api.open-meteo.com/v1/forecast"
)

// Cache backends for the alert cache.
const (
	CacheFile   = "file"
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

// RSVP primary write modes.
const (
	ModeAck   = "ack"
	ModeBlind = "blind"
)

// RedisConfig holds connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
}

// CacheConfig selects where the last-known-good alert list is kept.
type CacheConfig struct {
	// Backend is one of "file" (default), "redis" or "memory".
	Backend string      `yaml:"backend" json:"backend"`
	Path    string      `yaml:"path" json:"path"`
	Key     string      `yaml:"key" json:"key"`
	Redis   RedisConfig `yaml:"redis" json:"redis"`
}

// AlertsConfig describes the remote alert source.
type AlertsConfig struct {
	// URL is the spreadsheet web-app GET endpoint. Empty means "static alerts only".
	URL string `yaml:"url" json:"url"`
	// Refresh is a cron expression for periodic re-sync.
	Refresh string `yaml:"refresh" json:"refresh"`
	// PushUrgent announces newly seen urgent alerts via push.
	PushUrgent bool        `yaml:"push_urgent" json:"push_urgent"`
	Cache      CacheConfig `yaml:"cache" json:"cache"`
}

// RSVPConfig describes both RSVP sinks.
type RSVPConfig struct {
	SheetsURL string `yaml:"sheets_url" json:"sheets_url"`
	// Mode is "ack" (require a success response) or "blind" (dispatch is enough).
	Mode             string        `yaml:"mode" json:"mode"`
	BackupCollection string        `yaml:"backup_collection" json:"backup_collection"`
	BackupTimeout    time.Duration `yaml:"backup_timeout" json:"backup_timeout"`
}

// FirebaseWebConfig is the public web-client config handed to the browser
// and baked into the messaging service worker.
type FirebaseWebConfig struct {
	APIKey            string `yaml:"api_key" json:"apiKey"`
	AuthDomain        string `yaml:"auth_domain" json:"authDomain"`
	StorageBucket     string `yaml:"storage_bucket" json:"storageBucket"`
	MessagingSenderID string `yaml:"messaging_sender_id" json:"messagingSenderId"`
	AppID             string `yaml:"app_id" json:"appId"`
}

// FirebaseConfig holds server credentials and push settings.
type FirebaseConfig struct {
	ProjectID        string            `yaml:"project_id" json:"project_id"`
	CredentialsFile  string            `yaml:"credentials_file" json:"-"`
	VAPIDKey         string            `yaml:"vapid_key" json:"vapid_key"`
	TokensCollection string            `yaml:"tokens_collection" json:"tokens_collection"`
	Web              FirebaseWebConfig `yaml:"web" json:"web"`
}

// ReminderConfig controls scheduled push reminders.
type ReminderConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Check is the cron expression for the reminder job.
	Check string `yaml:"check" json:"check"`
	// EventLead is how long before each schedule event a reminder goes out.
	EventLead time.Duration `yaml:"event_lead" json:"event_lead"`
	// RSVPRule is an RRULE for RSVP reminders, bounded by the RSVP deadline.
	// Empty disables RSVP reminders.
	RSVPRule string `yaml:"rsvp_rule" json:"rsvp_rule"`
}

// WeatherConfig points the weather proxy at the venue.
type WeatherConfig struct {
	URL       string        `yaml:"url" json:"url"`
	Latitude  float64       `yaml:"latitude" json:"latitude"`
	Longitude float64       `yaml:"longitude" json:"longitude"`
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// BasicAuthConfig protects the /api/admin/* endpoints.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone the wedding schedule is written in.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// HTTPTimeout bounds every outbound HTTP call (alerts, sheets, weather).
	HTTPTimeout time.Duration `yaml:"http_timeout" json:"http_timeout"`

	Alerts    AlertsConfig     `yaml:"alerts" json:"alerts"`
	RSVP      RSVPConfig       `yaml:"rsvp" json:"rsvp"`
	Firebase  FirebaseConfig   `yaml:"firebase" json:"firebase"`
	Reminders ReminderConfig   `yaml:"reminders" json:"reminders"`
	Weather   WeatherConfig    `yaml:"weather" json:"weather"`
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Weather: WeatherConfig{
			// Federation of Kodava Samaja, Balugodu.
			Latitude:  12.198,
			Longitude: 75.7365,
		},
		Reminders: ReminderConfig{
			Enabled:  false,
			RSVPRule: "FREQ=WEEKLY;BYDAY=MO;BYHOUR=10;BYMINUTE=0;BYSECOND=0",
		},
		Alerts: AlertsConfig{PushUrgent: true},
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}

	if c.Alerts.Refresh == "" {
		c.Alerts.Refresh = defaultAlertsRefresh
	}
	switch c.Alerts.Cache.Backend {
	case CacheFile, CacheRedis, CacheMemory:
	default:
		c.Alerts.Cache.Backend = CacheFile
	}
	if c.Alerts.Cache.Path == "" {
		c.Alerts.Cache.Path = defaultCachePath
	}
	if c.Alerts.Cache.Key == "" {
		c.Alerts.Cache.Key = defaultCacheKey
	}
	if c.Alerts.Cache.Redis.Addr == "" {
		c.Alerts.Cache.Redis.Addr = "127.0.0.1:6379"
	}

	switch c.RSVP.Mode {
	case ModeAck, ModeBlind:
	default:
		c.RSVP.Mode = ModeAck
	}
	if c.RSVP.BackupCollection == "" {
		c.RSVP.BackupCollection = defaultBackupCollection
	}
	if c.RSVP.BackupTimeout <= 0 {
		c.RSVP.BackupTimeout = defaultBackupTimeout
	}

	if c.Firebase.TokensCollection == "" {
		c.Firebase.TokensCollection = defaultTokensCollection
	}

	if c.Reminders.Check == "" {
		c.Reminders.Check = defaultReminderCheck
	}
	if c.Reminders.EventLead <= 0 {
		c.Reminders.EventLead = defaultEventLead
	}

	if c.Weather.URL == "" {
		c.Weather.URL = defaultWeatherURL
	}
	if c.Weather.CacheTTL <= 0 {
		c.Weather.CacheTTL = defaultWeatherTTL
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
//
// Environment overrides (see ApplyEnv) are applied on top in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.Normalize()

	return &cfg, nil
}

// LoadEnv reads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides config values from environment variables. Only
// non-empty variables take effect.
func (c *Config) ApplyEnv() {
	c.Listen = getEnvOrDefault("WEDDING_LISTEN", c.Listen)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.Alerts.URL = getEnvOrDefault("ALERTS_SHEETS_URL", c.Alerts.URL)
	c.RSVP.SheetsURL = getEnvOrDefault("GOOGLE_SHEETS_URL", c.RSVP.SheetsURL)
	c.Firebase.ProjectID = getEnvOrDefault("FIREBASE_PROJECT_ID", c.Firebase.ProjectID)
	c.Firebase.CredentialsFile = getEnvOrDefault("FIREBASE_SERVICE_ACCOUNT_KEY", c.Firebase.CredentialsFile)
	c.Firebase.VAPIDKey = getEnvOrDefault("FIREBASE_VAPID_KEY", c.Firebase.VAPIDKey)
	c.Firebase.Web.APIKey = getEnvOrDefault("FIREBASE_API_KEY", c.Firebase.Web.APIKey)
	c.Firebase.Web.AuthDomain = getEnvOrDefault("FIREBASE_AUTH_DOMAIN", c.Firebase.Web.AuthDomain)
	c.Firebase.Web.StorageBucket = getEnvOrDefault("FIREBASE_STORAGE_BUCKET", c.Firebase.Web.StorageBucket)
	c.Firebase.Web.MessagingSenderID = getEnvOrDefault("FIREBASE_MESSAGING_SENDER_ID", c.Firebase.Web.MessagingSenderID)
	c.Firebase.Web.AppID = getEnvOrDefault("FIREBASE_APP_ID", c.Firebase.Web.AppID)
	c.Alerts.Cache.Redis.Addr = getEnvOrDefault("REDIS_ADDR", c.Alerts.Cache.Redis.Addr)
	c.Alerts.Cache.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", c.Alerts.Cache.Redis.Password)
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Alerts.Cache.Redis.DB = n
		}
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o600)
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
