package testsupport

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"panelcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t         testing.TB
	baseDir   string
	cfg       *config.Config
	stubs     bool
	behaviors map[string]Behavior
}

// Behavior overrides how a stub tool acts.
type Behavior struct {
	ExitCode     int
	Stderr       string
	SkipOutput   bool
	SleepSeconds int
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceRoot = filepath.Join(base, "workspace")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Tools.BaseDir = filepath.Join(base, "tools")
	cfgVal.Reencode.Verify = false

	builder := &configBuilder{
		t:         t,
		baseDir:   base,
		cfg:       &cfgVal,
		behaviors: map[string]Behavior{},
	}

	for _, opt := range opts {
		opt(builder)
	}
	if builder.stubs {
		builder.writeStubs()
	}

	return builder.cfg
}

// WithStubTools replaces every stage tool with a shell stub that records its
// invocation and writes the outputs the real tool would.
func WithStubTools() ConfigOption {
	return func(b *configBuilder) {
		b.stubs = true
	}
}

// WithStageBehavior stubs all tools and overrides the named stage's stub.
func WithStageBehavior(stage string, behavior Behavior) ConfigOption {
	return func(b *configBuilder) {
		b.stubs = true
		b.behaviors[stage] = behavior
	}
}

// WithProbe enables re-encode verification against a stub ffprobe reporting
// the given codec types.
func WithProbe(codecTypes ...string) ConfigOption {
	return func(b *configBuilder) {
		streams := make([]string, 0, len(codecTypes))
		for i, kind := range codecTypes {
			streams = append(streams, `{"index":`+strconv.Itoa(i)+`,"codec_type":"`+kind+`"}`)
		}
		payload := `{"streams":[` + strings.Join(streams, ",") + `],"format":{"duration":"4.0"}}`
		script := "#!/bin/sh\ncat <<'JSON'\n" + payload + "\nJSON\n"
		path := filepath.Join(b.baseDir, "bin", "ffprobe")
		b.write(path, script)
		b.cfg.Tools.FFprobe = path
		b.cfg.Reencode.Verify = true
	}
}

// WithConfig applies an arbitrary mutation.
func WithConfig(fn func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		fn(b.cfg)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkspaceRoot)
}

func (b *configBuilder) write(path, content string) {
	b.t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", path, err)
	}
}
