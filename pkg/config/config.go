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

// Config holds every knob the pipeline recognizes. All fields are
// explicit; components never probe for optional attributes.
type Config struct {
	Targets   TargetsConfig   `yaml:"targets" json:"targets"`
	Ledger    LedgerConfig    `yaml:"ledger" json:"ledger"`
	Collector CollectorConfig `yaml:"collector" json:"collector"`
	Workers   WorkersConfig   `yaml:"workers" json:"workers"`
	Enrich    EnrichConfig    `yaml:"enrichment" json:"enrichment"`
	Media     MediaConfig     `yaml:"media" json:"media"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// TargetsConfig lists the profiles to collect from.
type TargetsConfig struct {
	URLs        []string `yaml:"urls" json:"urls"`
	TargetLinks int      `yaml:"target_links" json:"target_links"` // 0 = unlimited
	DaysLimit   int      `yaml:"days_limit" json:"days_limit"`     // 0 = no age filter
}

// LedgerConfig addresses the spreadsheet and its rate budget.
type LedgerConfig struct {
	SheetID         string        `yaml:"sheet_id" json:"sheet_id"`
	CredentialsFile string        `yaml:"credentials_file" json:"credentials_file"`
	CallsPerMinute  int           `yaml:"calls_per_minute" json:"calls_per_minute"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
	ApplyFormatting bool          `yaml:"apply_formatting" json:"apply_formatting"`
}

// CollectorConfig tunes the scroll loop.
type CollectorConfig struct {
	MaxScrolls      int           `yaml:"max_scrolls" json:"max_scrolls"`
	ScrollDelay     time.Duration `yaml:"scroll_delay" json:"scroll_delay"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	StrictDates     bool          `yaml:"strict_dates" json:"strict_dates"`
	BackupDirectory string        `yaml:"backup_directory" json:"backup_directory"`
}

// WorkersConfig sets the per-task-type ceilings.
type WorkersConfig struct {
	EnableParallel bool          `yaml:"enable_parallel" json:"enable_parallel"`
	MaxValidation  int           `yaml:"max_validation" json:"max_validation"`
	MaxDownload    int           `yaml:"max_download" json:"max_download"`
	MaxUpload      int           `yaml:"max_upload" json:"max_upload"`
	MaxDescription int           `yaml:"max_description" json:"max_description"`
	MaxDateCheck   int           `yaml:"max_date_check" json:"max_date_check"`
	TaskTimeout    time.Duration `yaml:"task_timeout" json:"task_timeout"`
}

// EnrichConfig controls the description stage.
type EnrichConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	CookiesFile  string        `yaml:"cookies_file" json:"cookies_file"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
}

// MediaConfig controls the download/upload stage.
type MediaConfig struct {
	UploadEnabled   bool          `yaml:"upload_enabled" json:"upload_enabled"`
	DriveFolderID   string        `yaml:"drive_folder_id" json:"drive_folder_id"`
	CredentialsFile string        `yaml:"credentials_file" json:"credentials_file"`
	DownloadDir     string        `yaml:"download_dir" json:"download_dir"`
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
	DeleteLocal     bool          `yaml:"delete_local" json:"delete_local"`
	ChunkRetries    int           `yaml:"chunk_retries" json:"chunk_retries"`
}

// LoggingConfig mirrors logger.Options.
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	Minimal bool   `yaml:"minimal" json:"minimal"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Targets: TargetsConfig{
			TargetLinks: 0,
			DaysLimit:   30,
		},
		Ledger: LedgerConfig{
			CredentialsFile: "credentials.json",
			CallsPerMinute:  55,
			MaxRetries:      3,
			RetryBaseDelay:  2 * time.Second,
			RequestTimeout:  30 * time.Second,
			ApplyFormatting: true,
		},
		Collector: CollectorConfig{
			MaxScrolls:      15,
			ScrollDelay:     500 * time.Millisecond,
			BatchSize:       25,
			StrictDates:     false,
			BackupDirectory: ".",
		},
		Workers: WorkersConfig{
			EnableParallel: true,
			MaxValidation:  4,
			MaxDownload:    3,
			MaxUpload:      2,
			MaxDescription: 5,
			MaxDateCheck:   6,
			TaskTimeout:    60 * time.Second,
		},
		Enrich: EnrichConfig{
			Enabled:      true,
			CookiesFile:  "cookies.txt",
			FetchTimeout: 30 * time.Second,
		},
		Media: MediaConfig{
			UploadEnabled:   false,
			CredentialsFile: "credentials.json",
			DownloadDir:     "downloaded_reels",
			DownloadTimeout: 30 * time.Second,
			DeleteLocal:     true,
			ChunkRetries:    3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the final configuration: defaults, then file, then env.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile merges a YAML file into c. An empty path searches the
// standard locations; a missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	locations := []string{
		".reelsweep.yaml",
		".reelsweep.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "reelsweep", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".reelsweep.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// LoadFromEnv applies environment overrides. A .env file in the
// working directory is loaded first when present.
func (c *Config) LoadFromEnv() error {
	_ = godotenv.Load()

	if v := os.Getenv("REELSWEEP_SHEET_ID"); v != "" {
		c.Ledger.SheetID = v
	}
	if v := os.Getenv("REELSWEEP_CREDENTIALS_FILE"); v != "" {
		c.Ledger.CredentialsFile = v
		c.Media.CredentialsFile = v
	}
	if v := os.Getenv("REELSWEEP_TARGET_URLS"); v != "" {
		parts := strings.Split(v, ",")
		urls := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				urls = append(urls, p)
			}
		}
		c.Targets.URLs = urls
	}
	if v := os.Getenv("REELSWEEP_TARGET_LINKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Targets.TargetLinks = n
		}
	}
	if v := os.Getenv("REELSWEEP_CALLS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ledger.CallsPerMinute = n
		}
	}
	if v := os.Getenv("REELSWEEP_DOWNLOAD_DIR"); v != "" {
		c.Media.DownloadDir = v
	}
	if v := os.Getenv("REELSWEEP_COOKIES_FILE"); v != "" {
		c.Enrich.CookiesFile = v
	}
	if v := os.Getenv("REELSWEEP_UPLOAD_ENABLED"); v != "" {
		c.Media.UploadEnabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("REELSWEEP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks every startup precondition, including that targets
// are present. These are fatal: the run cannot do useful work with any
// of them wrong.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateProcessing checks the preconditions for commands that only
// work existing ledger rows and never visit a profile.
func (c *Config) ValidateProcessing() error {
	return c.validate(false)
}

func (c *Config) validate(requireTargets bool) error {
	var errs []error

	if requireTargets && len(c.Targets.URLs) == 0 {
		errs = append(errs, errors.New("at least one target URL is required"))
	}
	for _, u := range c.Targets.URLs {
		if !strings.Contains(u, "instagram.com") {
			errs = append(errs, fmt.Errorf("target %q is not an instagram URL", u))
		}
	}
	if c.Ledger.SheetID == "" {
		errs = append(errs, errors.New("ledger sheet ID is required"))
	}
	if c.Ledger.CredentialsFile == "" {
		errs = append(errs, errors.New("ledger credentials file is required"))
	} else if _, err := os.Stat(c.Ledger.CredentialsFile); err != nil {
		errs = append(errs, fmt.Errorf("ledger credentials file not found: %s", c.Ledger.CredentialsFile))
	}
	if c.Ledger.CallsPerMinute <= 0 {
		errs = append(errs, errors.New("ledger calls per minute must be positive"))
	}
	if c.Collector.MaxScrolls <= 0 {
		errs = append(errs, errors.New("collector max scrolls must be positive"))
	}
	if c.Collector.BatchSize < 0 {
		errs = append(errs, errors.New("collector batch size cannot be negative"))
	}
	if c.Workers.TaskTimeout <= 0 {
		errs = append(errs, errors.New("worker task timeout must be positive"))
	}
	if c.Media.UploadEnabled {
		if c.Media.CredentialsFile == "" {
			errs = append(errs, errors.New("media credentials file is required when upload is enabled"))
		}
		if c.Media.DownloadDir == "" {
			errs = append(errs, errors.New("media download directory is required when upload is enabled"))
		}
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
