// Package config loads footballdb settings: embedded defaults, an optional
// YAML file on top, then environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// EnvConfigPath names the environment variable holding a config file path.
const EnvConfigPath = "FOOTBALLDB_CONFIG"

type Config struct {
	Store        StoreConfig        `yaml:"store"`
	Paths        PathsConfig        `yaml:"paths"`
	FootballData FootballDataConfig `yaml:"football_data"`
	Understat    UnderstatConfig    `yaml:"understat"`
	Redis        RedisConfig        `yaml:"redis"`
	API          APIConfig          `yaml:"api"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Notify       NotifyConfig       `yaml:"notify"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`    // file path for sqlite
}

type PathsConfig struct {
	RawDir string `yaml:"raw_dir"`
	XGFile string `yaml:"xg_file"`
}

type FootballDataConfig struct {
	BaseURL   string        `yaml:"base_url"`
	SeasonID  string        `yaml:"season_id"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	Pages     []LeaguePage  `yaml:"pages"`
}

// LeaguePage is one football-data page and the files wanted from it.
// AnyCSV pages keep every CSV link except fixture lists.
type LeaguePage struct {
	Page    string   `yaml:"page"`
	Targets []string `yaml:"targets"`
	AnyCSV  bool     `yaml:"any_csv"`
}

type UnderstatConfig struct {
	BaseURL   string            `yaml:"base_url"`
	Season    string            `yaml:"season"`
	Leagues   []string          `yaml:"leagues"`
	Settle    time.Duration     `yaml:"settle"` // wait after navigation
	Headless  bool              `yaml:"headless"`
	UserAgent string            `yaml:"user_agent"`
	CacheTTL  time.Duration     `yaml:"cache_ttl"`
	TeamNames map[string]string `yaml:"team_names"`
}

type RedisConfig struct {
	URL         string `yaml:"url"` // empty disables cache and streams
	LoadStream  string `yaml:"load_stream"`
	TableStream string `yaml:"table_stream"`
}

type APIConfig struct {
	RESTPort string `yaml:"rest_port"`
	WSPort   string `yaml:"ws_port"`
}

// NotifyConfig enables the Telegram run summary when a token is set.
type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type SchedulerConfig struct {
	Hour       int           `yaml:"hour"`
	RunOnStart bool          `yaml:"run_on_start"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse built-in defaults: %w", err)
	}
	return &cfg, nil
}

// Load builds the configuration. configPath may be empty, in which case
// FOOTBALLDB_CONFIG is consulted; with neither set only defaults and the
// environment apply.
func Load(configPath string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Paths.RawDir = getEnv("RAW_DATA_DIR", c.Paths.RawDir)
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("STORE_DSN", c.Store.DSN)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.API.RESTPort = getEnv("REST_PORT", c.API.RESTPort)
	c.API.WSPort = getEnv("WS_PORT", c.API.WSPort)
	c.Understat.Season = getEnv("SEASON", c.Understat.Season)
	c.FootballData.SeasonID = getEnv("FOOTBALL_DATA_SEASON", c.FootballData.SeasonID)

	c.Notify.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Notify.TelegramToken)
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", chat, err)
		}
		c.Notify.TelegramChatID = id
	}

	if hour := os.Getenv("SCHEDULE_HOUR"); hour != "" {
		h, err := strconv.Atoi(hour)
		if err != nil {
			return fmt.Errorf("invalid SCHEDULE_HOUR %q: %w", hour, err)
		}
		c.Scheduler.Hour = h
	}
	return nil
}

// Validate reports settings that would make every run fail.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Store.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		problems = append(problems, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.DSN == "" {
		problems = append(problems, "store dsn is empty")
	}
	if c.Paths.RawDir == "" {
		problems = append(problems, "raw_dir is empty")
	}
	if c.Paths.XGFile == "" {
		problems = append(problems, "xg_file is empty")
	}
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		problems = append(problems, "telegram_chat_id is required with telegram_token")
	}
	if c.Scheduler.Hour < 0 || c.Scheduler.Hour > 23 {
		problems = append(problems, fmt.Sprintf("scheduler hour %d out of range", c.Scheduler.Hour))
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// TeamName translates an understat team title, passing unknown titles through.
func (c UnderstatConfig) TeamName(title string) string {
	if name, ok := c.TeamNames[title]; ok {
		return name
	}
	return title
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
