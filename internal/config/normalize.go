package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkspace()
	if err := c.normalizeTools(); err != nil {
		return err
	}
	if err := c.normalizeStages(); err != nil {
		return err
	}
	c.normalizePoller()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("PANELCAST_WORKSPACE"); ok && strings.TrimSpace(value) != "" {
		c.Paths.WorkspaceRoot = value
	}
	var err error
	if c.Paths.WorkspaceRoot, err = expandPath(c.Paths.WorkspaceRoot); err != nil {
		return fmt.Errorf("paths.workspace_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeWorkspace() {
	w := &c.Workspace
	for _, field := range []struct {
		value    *string
		fallback string
	}{
		{&w.RawDir, defaultRawDir},
		{&w.CharacterDir, defaultCharacterDir},
		{&w.VoiceBankDir, defaultVoiceBankDir},
		{&w.RenamedDir, defaultRenamedDir},
		{&w.ColorizedDir, defaultColorizedDir},
		{&w.JSONDir, defaultJSONDir},
		{&w.TranscriptDir, defaultTranscriptDir},
		{&w.TranscriptFile, defaultTranscriptFile},
		{&w.AudioDir, defaultAudioDir},
		{&w.FinalDir, defaultFinalDir},
		{&w.ArtifactName, defaultArtifactName},
	} {
		*field.value = strings.TrimSpace(*field.value)
		if *field.value == "" {
			*field.value = field.fallback
		}
	}
}

func (c *Config) normalizeTools() error {
	var err error
	if strings.TrimSpace(c.Tools.BaseDir) == "" {
		c.Tools.BaseDir = defaultToolsDir
	}
	if c.Tools.BaseDir, err = expandPath(c.Tools.BaseDir); err != nil {
		return fmt.Errorf("tools.base_dir: %w", err)
	}
	c.Tools.Python = strings.TrimSpace(c.Tools.Python)
	if c.Tools.Python == "" {
		c.Tools.Python = defaultPython
	}
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpeg
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobe
	}
	c.Tools.NarratorVoice = strings.TrimSpace(c.Tools.NarratorVoice)
	c.Reencode.Engine = strings.ToLower(strings.TrimSpace(c.Reencode.Engine))
	if c.Reencode.Engine == "" {
		c.Reencode.Engine = defaultReencodeEngine
	}
	return nil
}

func (c *Config) normalizeStages() error {
	manifest := strings.TrimSpace(c.Stages.Manifest)
	if manifest == "" {
		c.Stages.Manifest = ""
		return nil
	}
	expanded, err := expandPath(manifest)
	if err != nil {
		return fmt.Errorf("stages.manifest: %w", err)
	}
	c.Stages.Manifest = expanded
	return nil
}

func (c *Config) normalizePoller() {
	if value, ok := os.LookupEnv("PANELCAST_SERVICE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Poller.ServiceURL = value
	}
	c.Poller.ServiceURL = strings.TrimRight(strings.TrimSpace(c.Poller.ServiceURL), "/")
	if c.Poller.ServiceURL == "" {
		c.Poller.ServiceURL = defaultServiceURL
	}
	if !strings.Contains(c.Poller.ServiceURL, "://") {
		c.Poller.ServiceURL = "http://" + c.Poller.ServiceURL
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
