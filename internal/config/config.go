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
	"gopkg.in/yaml.v3"
)

// Config holds settings loaded from socialbot.yml plus environment overrides.
type Config struct {
	Platforms     []string      `yaml:"platforms,omitempty"`
	Threshold     int           `yaml:"threshold,omitempty"`
	MaxIterations int           `yaml:"maxIterations,omitempty"`
	Concurrency   int           `yaml:"concurrency,omitempty"`
	HistoryPath   string        `yaml:"historyPath,omitempty"`
	Backend       BackendConfig `yaml:"backend,omitempty"`
	Schedule      Schedule      `yaml:"schedule,omitempty"`
	Storage       Storage       `yaml:"storage,omitempty"`
	Calendar      Calendar      `yaml:"calendar,omitempty"`
	Transcript    Transcript    `yaml:"transcript,omitempty"`
	Google        Google        `yaml:"google,omitempty"`
	Log           Log           `yaml:"log,omitempty"`
}

// BackendConfig selects and tunes the text-generation backend.
type BackendConfig struct {
	Provider       string        `yaml:"provider,omitempty"`
	Model          string        `yaml:"model,omitempty"`
	ToolModel      string        `yaml:"toolModel,omitempty"`
	SearchModel    string        `yaml:"searchModel,omitempty"`
	APIKey         string        `yaml:"apiKey,omitempty"`
	BaseURL        string        `yaml:"baseURL,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
	ToolTimeout    time.Duration `yaml:"toolTimeout,omitempty"`
	RetryAttempts  int           `yaml:"retryAttempts,omitempty"`
	MaxOutputToken int           `yaml:"maxOutputTokens,omitempty"`
}

// Schedule is the publishing window policy.
type Schedule struct {
	Timezone  string `yaml:"timezone,omitempty"`
	StartHour int    `yaml:"startHour,omitempty"`
	EndHour   int    `yaml:"endHour,omitempty"`
}

// Storage selects where approved posts are persisted.
type Storage struct {
	Driver        string `yaml:"driver,omitempty"` // local or drive
	Dir           string `yaml:"dir,omitempty"`
	DriveFolderID string `yaml:"driveFolderID,omitempty"`
}

// Calendar selects where publication events are created.
type Calendar struct {
	Driver     string `yaml:"driver,omitempty"` // ics or google
	Dir        string `yaml:"dir,omitempty"`
	CalendarID string `yaml:"calendarID,omitempty"`
}

// Transcript selects the transcript source.
type Transcript struct {
	Source   string `yaml:"source,omitempty"` // youtube or dir
	Dir      string `yaml:"dir,omitempty"`
	Language string `yaml:"language,omitempty"`
}

// Google holds service-account settings shared by Drive and Calendar.
type Google struct {
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() Config {
	return Config{
		Platforms:     []string{"LinkedIn", "Instagram"},
		Threshold:     7,
		MaxIterations: 8,
		Concurrency:   2,
		HistoryPath:   filepath.Join(".socialbot", "history.db"),
		Backend: BackendConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			ToolModel:      "gpt-4o",
			Timeout:        60 * time.Second,
			ToolTimeout:    30 * time.Second,
			RetryAttempts:  2,
			MaxOutputToken: 2500,
		},
		Schedule: Schedule{
			Timezone:  "Europe/Amsterdam",
			StartHour: 12,
			EndHour:   17,
		},
		Storage:    Storage{Driver: "local", Dir: filepath.Join(".socialbot", "posts")},
		Calendar:   Calendar{Driver: "ics", Dir: filepath.Join(".socialbot", "calendar"), CalendarID: "primary"},
		Transcript: Transcript{Source: "youtube", Language: "en"},
		Log:        Log{Level: "info", Format: "text"},
	}
}

// Load reads socialbot.yml or socialbot.yaml from dir (or the explicit path
// when non-empty), overlays it on Default, then applies environment
// overrides. A missing config file is not an error.
func Load(dir, path string) (*Config, error) {
	cfg := Default()

	data, err := readConfigFile(dir, path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}

	loadDotEnv(dir)
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(dir, path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		return data, nil
	}
	for _, name := range []string{"socialbot.yml", "socialbot.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		return data, nil
	}
	return nil, nil
}

// loadDotEnv loads .env without overriding variables already set in the
// process environment.
func loadDotEnv(dir string) {
	file := filepath.Join(dir, ".env")
	if _, err := os.Stat(file); err != nil {
		return
	}
	_ = godotenv.Load(file)
}

func applyEnv(cfg *Config) {
	cfg.Backend.APIKey = GetEnv("OPENAI_API_KEY", cfg.Backend.APIKey)
	cfg.Backend.APIKey = GetEnv("SOCIALBOT_API_KEY", cfg.Backend.APIKey)
	cfg.Backend.BaseURL = GetEnv("SOCIALBOT_API_URL", cfg.Backend.BaseURL)
	cfg.Backend.Model = GetEnv("SOCIALBOT_MODEL", cfg.Backend.Model)
	cfg.Backend.SearchModel = GetEnv("SOCIALBOT_SEARCH_MODEL", cfg.Backend.SearchModel)
	cfg.Threshold = GetEnvInt("SOCIALBOT_THRESHOLD", cfg.Threshold)
	cfg.Google.CredentialsFile = GetEnv("GOOGLE_APPLICATION_CREDENTIALS", cfg.Google.CredentialsFile)
	cfg.Storage.DriveFolderID = GetEnv("SOCIALBOT_DRIVE_FOLDER_ID", cfg.Storage.DriveFolderID)
	cfg.Calendar.CalendarID = GetEnv("SOCIALBOT_CALENDAR_ID", cfg.Calendar.CalendarID)
	cfg.Log.Level = GetEnv("LOG_LEVEL", cfg.Log.Level)
	if platforms := GetEnv("SOCIALBOT_PLATFORMS", ""); platforms != "" {
		cfg.Platforms = splitList(platforms)
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if len(c.Platforms) == 0 {
		return errors.New("config: at least one platform is required")
	}
	for _, p := range c.Platforms {
		if strings.TrimSpace(p) == "" {
			return errors.New("config: platform names must not be empty")
		}
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("config: maxIterations must be positive, got %d", c.MaxIterations)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("config: schedule timezone %q: %w", c.Schedule.Timezone, err)
	}
	if c.Schedule.StartHour < 0 || c.Schedule.EndHour > 24 || c.Schedule.StartHour >= c.Schedule.EndHour {
		return fmt.Errorf("config: invalid publish window %d-%d", c.Schedule.StartHour, c.Schedule.EndHour)
	}
	switch c.Storage.Driver {
	case "local", "drive":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Calendar.Driver {
	case "ics", "google":
	default:
		return fmt.Errorf("config: unknown calendar driver %q", c.Calendar.Driver)
	}
	switch c.Transcript.Source {
	case "youtube", "dir":
	default:
		return fmt.Errorf("config: unknown transcript source %q", c.Transcript.Source)
	}
	if (c.Storage.Driver == "drive" || c.Calendar.Driver == "google") && c.Google.CredentialsFile == "" {
		return errors.New("config: google.credentialsFile is required for drive storage or google calendar")
	}
	return nil
}

// GetEnv gets an environment variable with a default value.
func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
