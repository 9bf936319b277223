package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkspace(); err != nil {
		return err
	}
	if err := c.validateReencode(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	if err := c.validatePoller(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkspaceRoot) == "" {
		return errors.New("paths.workspace_root must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkspace() error {
	seen := make(map[string]string)
	for key, value := range map[string]string{
		"workspace.raw_dir":        c.Workspace.RawDir,
		"workspace.character_dir":  c.Workspace.CharacterDir,
		"workspace.voice_bank_dir": c.Workspace.VoiceBankDir,
		"workspace.renamed_dir":    c.Workspace.RenamedDir,
		"workspace.colorized_dir":  c.Workspace.ColorizedDir,
		"workspace.json_dir":       c.Workspace.JSONDir,
		"workspace.transcript_dir": c.Workspace.TranscriptDir,
		"workspace.audio_dir":      c.Workspace.AudioDir,
		"workspace.final_dir":      c.Workspace.FinalDir,
	} {
		cleaned := filepath.Clean(value)
		if cleaned == "." || cleaned == string(filepath.Separator) {
			return fmt.Errorf("%s must name a directory below the workspace root", key)
		}
		if other, ok := seen[cleaned]; ok {
			return fmt.Errorf("%s and %s must not share a directory", key, other)
		}
		seen[cleaned] = key
	}
	if strings.ContainsRune(c.Workspace.ArtifactName, filepath.Separator) {
		return errors.New("workspace.artifact_name must be a file name, not a path")
	}
	if strings.ContainsRune(c.Workspace.TranscriptFile, filepath.Separator) {
		return errors.New("workspace.transcript_file must be a file name, not a path")
	}
	return nil
}

func (c *Config) validateReencode() error {
	switch c.Reencode.Engine {
	case "ffmpeg", "drapto":
		return nil
	default:
		return fmt.Errorf("reencode.engine: unsupported value %q (want ffmpeg or drapto)", c.Reencode.Engine)
	}
}

func (c *Config) validateTimings() error {
	if err := ensurePositiveMap(map[string]int{
		"service.generate_wait_seconds":  c.Service.GenerateWaitSeconds,
		"poller.retry_interval_seconds":  c.Poller.RetryIntervalSeconds,
		"poller.deadline_seconds":        c.Poller.DeadlineSeconds,
		"poller.request_timeout_seconds": c.Poller.RequestTimeoutSeconds,
		"poller.long_poll_seconds":       c.Poller.LongPollSeconds,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Service.KillGraceSeconds < 0 {
		return errors.New("service.kill_grace_seconds must be >= 0")
	}
	if c.Service.MaxStderrBytes < 0 {
		return errors.New("service.max_stderr_bytes must be >= 0")
	}
	return nil
}

func (c *Config) validatePoller() error {
	parsed, err := url.Parse(c.Poller.ServiceURL)
	if err != nil {
		return fmt.Errorf("poller.service_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("poller.service_url: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("poller.service_url must include a host")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
