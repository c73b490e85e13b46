package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	EntityDir  string `toml:"entity_dir"`
}

// Export contains the global export switches and field configuration.
type Export struct {
	Enabled                bool   `toml:"enabled"`
	OnlyPublished          bool   `toml:"only_published"`
	SiteName               string `toml:"site_name"`
	LTPSystem              string `toml:"ltp_system"`
	FieldConfiguration     string `toml:"field_configuration"`
	FieldConfigurationFile string `toml:"field_configuration_file"`
	BatchConcurrency       int    `toml:"batch_concurrency"`
}

// Lock contains directory lock tuning. Intervals are in seconds.
type Lock struct {
	// Mode is "marker" (check-then-create) or "exclusive" (O_EXCL create).
	Mode          string `toml:"mode"`
	PollInterval  int    `toml:"poll_interval"`
	Timeout       int    `toml:"timeout"`
	WorkerTimeout int    `toml:"worker_timeout"`
}

// Archivematica contains connection settings for an Archivematica storage pipeline.
type Archivematica struct {
	Host             string `toml:"host"`
	Username         string `toml:"api_key_username"`
	Password         string `toml:"api_key_password"`
	BaseURL          string `toml:"base_url"`
	SharedPath       string `toml:"shared_path"`
	ProcessingConfig string `toml:"processing_config"`
	TransferField    string `toml:"transfer_field"`
	SIPField         string `toml:"sip_field"`
	// SIPStrategy selects how the SIP UUID is obtained: "transfer_status" or "ingest_status".
	SIPStrategy string `toml:"sip_strategy"`
}

// ARCLib contains connection settings for an ARCLib instance.
type ARCLib struct {
	Host              string `toml:"host"`
	Username          string `toml:"username"`
	Password          string `toml:"password"`
	BaseURL           string `toml:"base_url"`
	Workflow          string `toml:"workflow"`
	WorkflowFile      string `toml:"workflow_file"`
	ProducerProfileID string `toml:"producer_profile_id"`
	TransferField     string `toml:"transfer_field"`
	SIPField          string `toml:"sip_field"`
}

// Queue selects and configures the export queue backend.
type Queue struct {
	Backend      string `toml:"backend"`
	RedisURL     string `toml:"redis_url"`
	RedisKey     string `toml:"redis_key"`
	LeaseSeconds int    `toml:"lease_seconds"`
}

// Worker contains queue worker timing. Intervals are in seconds.
type Worker struct {
	StatusPollInterval int `toml:"status_poll_interval"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	BatchSize          int `toml:"batch_size"`
	RequestTimeout     int `toml:"request_timeout"`
}

// API contains the event webhook listener settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ltpexport.
//
// Configuration sections by subsystem:
//   - Paths: staging, state, log and entity store directories
//   - Export: export gating, site name, backend selection, field configuration
//   - Lock: directory lock mode and timeouts
//   - Archivematica / ARCLib: per-backend connection settings
//   - Queue: export queue backend
//   - Worker: polling cadence for the queue worker
//   - API: event webhook listener
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Export        Export        `toml:"export"`
	Lock          Lock          `toml:"lock"`
	Archivematica Archivematica `toml:"archivematica"`
	ARCLib        ARCLib        `toml:"arclib"`
	Queue         Queue         `toml:"queue"`
	Worker        Worker        `toml:"worker"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ltpexport.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the exporter and worker write into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir, c.Paths.EntityDir, c.BaseURL()}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueuePath returns the SQLite queue database location.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.StateDir, "queue.db")
}

// InstanceLockPath returns the path of the single-instance lock used by long-running commands.
func (c *Config) InstanceLockPath() string {
	return filepath.Join(c.Paths.StateDir, "ltpexport.lock")
}

// BaseURL returns the staging root of the selected LTP system.
func (c *Config) BaseURL() string {
	switch c.Export.LTPSystem {
	case SystemARCLib:
		return c.ARCLib.BaseURL
	default:
		return c.Archivematica.BaseURL
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
