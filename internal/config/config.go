package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkspaceRoot string `toml:"workspace_root"`
	LogDir        string `toml:"log_dir"`
	APIBind       string `toml:"api_bind"`
}

// Workspace names the directories of the job workspace, relative to
// Paths.WorkspaceRoot unless absolute.
type Workspace struct {
	RawDir         string `toml:"raw_dir"`
	CharacterDir   string `toml:"character_dir"`
	VoiceBankDir   string `toml:"voice_bank_dir"`
	RenamedDir     string `toml:"renamed_dir"`
	ColorizedDir   string `toml:"colorized_dir"`
	JSONDir        string `toml:"json_dir"`
	TranscriptDir  string `toml:"transcript_dir"`
	TranscriptFile string `toml:"transcript_file"`
	AudioDir       string `toml:"audio_dir"`
	FinalDir       string `toml:"final_dir"`
	ArtifactName   string `toml:"artifact_name"`
}

// Tools holds the external executables and model assets each stage invokes.
type Tools struct {
	BaseDir             string `toml:"base_dir"`
	Python              string `toml:"python"`
	FFmpeg              string `toml:"ffmpeg"`
	FFprobe             string `toml:"ffprobe"`
	ExtractScript       string `toml:"extract_script"`
	ColorizeScript      string `toml:"colorize_script"`
	NarrateScript       string `toml:"narrate_script"`
	AssembleScript      string `toml:"assemble_script"`
	ColorizerGenerator  string `toml:"colorizer_generator"`
	ColorizerDenoiser   string `toml:"colorizer_denoiser"`
	ColorizerDenoiseStr int    `toml:"colorizer_denoise_strength"`
	UseGPU              bool   `toml:"use_gpu"`
	NarratorVoice       string `toml:"narrator_voice"`
}

// Stages controls stage definition overrides.
type Stages struct {
	Manifest string `toml:"manifest"`
}

// Reencode configures the final canonical encode of the assembled video.
type Reencode struct {
	Engine string `toml:"engine"`
	Verify bool   `toml:"verify"`
}

// Service configures the job service and its HTTP surface.
type Service struct {
	MaxStderrBytes      int `toml:"max_stderr_bytes"`
	GenerateWaitSeconds int `toml:"generate_wait_seconds"`
	KillGraceSeconds    int `toml:"kill_grace_seconds"`
}

// Poller configures the client-side submit/await loop.
type Poller struct {
	ServiceURL            string `toml:"service_url"`
	RetryIntervalSeconds  int    `toml:"retry_interval_seconds"`
	DeadlineSeconds       int    `toml:"deadline_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	LongPollSeconds       int    `toml:"long_poll_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobStarted     bool   `toml:"job_started"`
	JobCompleted   bool   `toml:"job_completed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for panelcast.
//
// Configuration sections by subsystem:
//   - Paths: workspace root, log directory, API bind address
//   - Workspace: directory names inside the workspace root
//   - Tools: stage executables and model assets
//   - Stages: optional YAML manifest replacing the built-in stage list
//   - Reencode: final encode engine and verification
//   - Service: job service limits
//   - Poller: client retry loop
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workspace     Workspace     `toml:"workspace"`
	Tools         Tools         `toml:"tools"`
	Stages        Stages        `toml:"stages"`
	Reencode      Reencode      `toml:"reencode"`
	Service       Service       `toml:"service"`
	Poller        Poller        `toml:"poller"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/panelcast/config.toml")
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("panelcast.toml")
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

// EnsureDirectories creates the directories the daemon and CLI write to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceRoot, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JournalPath returns the SQLite journal location inside the workspace.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.WorkspaceRoot, ".panelcast", "journal.db")
}

// LockPath returns the daemon lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "panelcast.lock")
}

// MaxStderrBytes returns the bound applied to captured stage stderr.
func (c *Config) MaxStderrBytes() int {
	if c.Service.MaxStderrBytes <= 0 {
		return defaultMaxStderrBytes
	}
	return c.Service.MaxStderrBytes
}

// GenerateWait returns how long the synchronous generate endpoint waits.
func (c *Config) GenerateWait() time.Duration {
	return time.Duration(c.Service.GenerateWaitSeconds) * time.Second
}

// KillGrace returns the delay between SIGTERM and SIGKILL for a cancelled stage.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Service.KillGraceSeconds) * time.Second
}

// RetryInterval returns the poller's fixed backoff.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Poller.RetryIntervalSeconds) * time.Second
}

// PollDeadline returns the poller's default overall deadline.
func (c *Config) PollDeadline() time.Duration {
	return time.Duration(c.Poller.DeadlineSeconds) * time.Second
}

// RequestTimeout returns the per-request HTTP timeout used by the poller client.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Poller.RequestTimeoutSeconds) * time.Second
}

// LongPoll returns the server-side wait requested per poll.
func (c *Config) LongPoll() time.Duration {
	return time.Duration(c.Poller.LongPollSeconds) * time.Second
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

// ToolPath resolves a script or model path against Tools.BaseDir.
func (c *Config) ToolPath(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(c.Tools.BaseDir, value)
}
