// Package config handles configuration loading from files, defaults, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHRONOFLOW_"

// Config holds the application configuration.
type Config struct {
	Schedule ScheduleConfig `toml:"schedule"`
	LLM      LLMConfig      `toml:"llm"`
	Storage  StorageConfig  `toml:"storage"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	Log      LogConfig      `toml:"log"`
}

// ScheduleConfig holds working hours and calendar display settings.
type ScheduleConfig struct {
	Workdays    []string `toml:"workdays"`     // e.g., ["monday", "tuesday", ...]
	DayStart    string   `toml:"day_start"`    // e.g., "09:00"
	DayEnd      string   `toml:"day_end"`      // e.g., "17:00"
	VisibleDays int      `toml:"visible_days"` // columns shown by default
	Timezone    string   `toml:"timezone"`     // IANA name, empty means local
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	Provider string `toml:"provider"` // "openai", "copilot", "lmstudio", "ollama"
	Model    string `toml:"model"`    // e.g., "gpt-4o"
	BaseURL  string `toml:"base_url"` // empty uses the provider default
	APIKey   string `toml:"api_key"`
}

// StorageConfig holds database settings.
type StorageConfig struct {
	Driver string `toml:"driver"` // "sqlite" or "postgres"
	DBPath string `toml:"db_path"`
	DSN    string `toml:"dsn"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Listen                 string   `toml:"listen"`
	JWTSecret              string   `toml:"jwt_secret"`
	TokenTTL               string   `toml:"token_ttl"` // Go duration, e.g. "720h"
	CORSOrigins            []string `toml:"cors_origins"`
	AssistantRatePerMinute int      `toml:"assistant_rate_per_minute"`
}

// TelegramConfig holds bot and login widget settings.
type TelegramConfig struct {
	BotToken            string `toml:"bot_token"`
	BotUsername         string `toml:"bot_username"`
	Reminders           bool   `toml:"reminders"`
	ReminderLeadMinutes int    `toml:"reminder_lead_minutes"`
	LoginMaxAge         string `toml:"login_max_age"` // Go duration, e.g. "24h"
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // console or json
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			Workdays:    []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
			DayStart:    "09:00",
			DayEnd:      "17:00",
			VisibleDays: 7,
		},
		LLM: LLMConfig{
			Provider: "copilot",
			Model:    "gpt-4o",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DBPath: defaultDBPath(),
		},
		Server: ServerConfig{
			Listen:                 ":8080",
			TokenTTL:               "720h",
			AssistantRatePerMinute: 10,
		},
		Telegram: TelegramConfig{
			Reminders:           true,
			ReminderLeadMinutes: 10,
			LoginMaxAge:         "24h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// defaultDBPath returns the default database path.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chronoflow.db"
	}
	return filepath.Join(home, ".local", "share", "chronoflow", "chronoflow.db")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "chronoflow", "config.toml")
}

// Load loads configuration from the default path, merging with defaults and env vars.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from the specified path.
// Layers, lowest precedence first: defaults, the TOML file, a .env file in
// the working directory, then CHRONOFLOW_* environment variables.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	// Try to load from file (not an error if it doesn't exist)
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.Storage.DBPath = expandPath(cfg.Storage.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads config from a file if it exists.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// loadDotEnv exports variables from a dotenv file without overriding
// variables already present in the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

type envString struct {
	key string
	dst *string
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) error {
	strs := []envString{
		{"DAY_START", &cfg.Schedule.DayStart},
		{"DAY_END", &cfg.Schedule.DayEnd},
		{"TIMEZONE", &cfg.Schedule.Timezone},
		{"LLM_PROVIDER", &cfg.LLM.Provider},
		{"LLM_MODEL", &cfg.LLM.Model},
		{"LLM_BASE_URL", &cfg.LLM.BaseURL},
		{"LLM_API_KEY", &cfg.LLM.APIKey},
		{"DB_DRIVER", &cfg.Storage.Driver},
		{"DB_PATH", &cfg.Storage.DBPath},
		{"DATABASE_URL", &cfg.Storage.DSN},
		{"LISTEN", &cfg.Server.Listen},
		{"JWT_SECRET", &cfg.Server.JWTSecret},
		{"TOKEN_TTL", &cfg.Server.TokenTTL},
		{"TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken},
		{"TELEGRAM_BOT_USERNAME", &cfg.Telegram.BotUsername},
		{"TELEGRAM_LOGIN_MAX_AGE", &cfg.Telegram.LoginMaxAge},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FORMAT", &cfg.Log.Format},
	}
	for _, e := range strs {
		if v := os.Getenv(EnvPrefix + e.key); v != "" {
			*e.dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "WORKDAYS"); v != "" {
		cfg.Schedule.Workdays = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	ints := map[string]*int{
		"VISIBLE_DAYS":              &cfg.Schedule.VisibleDays,
		"ASSISTANT_RATE_PER_MINUTE": &cfg.Server.AssistantRatePerMinute,
		"REMINDER_LEAD_MINUTES":     &cfg.Telegram.ReminderLeadMinutes,
	}
	for key, dst := range ints {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v := os.Getenv(EnvPrefix + "REMINDERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sREMINDERS: %w", EnvPrefix, err)
		}
		cfg.Telegram.Reminders = b
	}

	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validateTime(c.Schedule.DayStart, "day_start"); err != nil {
		return err
	}
	if err := validateTime(c.Schedule.DayEnd, "day_end"); err != nil {
		return err
	}
	if c.Schedule.DayStart >= c.Schedule.DayEnd {
		return errors.New("day_start must be before day_end")
	}

	if len(c.Schedule.Workdays) == 0 {
		return errors.New("at least one workday must be configured")
	}
	for _, day := range c.Schedule.Workdays {
		if !isValidWeekday(day) {
			return fmt.Errorf("invalid workday: %s", day)
		}
	}
	if c.Schedule.VisibleDays < 1 || c.Schedule.VisibleDays > 31 {
		return fmt.Errorf("visible_days must be between 1 and 31, got %d", c.Schedule.VisibleDays)
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Schedule.Timezone, err)
		}
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return errors.New("db_path must be set")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s", c.Storage.Driver)
	}

	if _, err := time.ParseDuration(c.Server.TokenTTL); err != nil {
		return fmt.Errorf("token_ttl: %w", err)
	}
	if c.Server.AssistantRatePerMinute < 1 {
		return errors.New("assistant_rate_per_minute must be positive")
	}
	if _, err := time.ParseDuration(c.Telegram.LoginMaxAge); err != nil {
		return fmt.Errorf("login_max_age: %w", err)
	}
	if c.Telegram.ReminderLeadMinutes < 0 {
		return errors.New("reminder_lead_minutes cannot be negative")
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	return nil
}

// validateTime checks if a time string is in HH:MM format.
func validateTime(t, field string) error {
	if len(t) != 5 || t[2] != ':' {
		return fmt.Errorf("%s must be in HH:MM format, got %q", field, t)
	}
	if !isDigits(t[0:2]) || !isDigits(t[3:5]) {
		return fmt.Errorf("%s must be in HH:MM format, got %q", field, t)
	}
	return nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var validWeekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func isValidWeekday(day string) bool {
	_, ok := validWeekdays[strings.ToLower(day)]
	return ok
}

// IsWorkday returns true if the given weekday name is a configured workday.
func (c *Config) IsWorkday(weekday string) bool {
	weekday = strings.ToLower(weekday)
	for _, d := range c.Schedule.Workdays {
		if strings.ToLower(d) == weekday {
			return true
		}
	}
	return false
}

// Workdays returns the configured workdays as time.Weekday values.
func (c *Config) Workdays() []time.Weekday {
	days := make([]time.Weekday, 0, len(c.Schedule.Workdays))
	for _, d := range c.Schedule.Workdays {
		if wd, ok := validWeekdays[strings.ToLower(d)]; ok {
			days = append(days, wd)
		}
	}
	return days
}

// Location returns the configured timezone, or time.Local.
func (c *Config) Location() *time.Location {
	if c.Schedule.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// TokenTTL returns the parsed JWT lifetime.
func (c *Config) TokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Server.TokenTTL)
	return d
}

// LoginMaxAge returns the parsed Telegram login freshness window.
func (c *Config) LoginMaxAge() time.Duration {
	d, _ := time.ParseDuration(c.Telegram.LoginMaxAge)
	return d
}

// ReminderLead returns how long before an item's start reminders fire.
func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.Telegram.ReminderLeadMinutes) * time.Minute
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Secrets may be present; keep the file private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
