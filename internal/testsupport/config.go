package testsupport

import (
	"path/filepath"
	"testing"

	"ltpexport/internal/config"
)

// DefaultFieldConfiguration exports node articles and media images.
const DefaultFieldConfiguration = `node_article::title::[node:title]
node_article::author::[node:field_author]
media_image::name::[media:name]
`

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Lock polling is shortened so contention tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.EntityDir = filepath.Join(base, "entities")
	cfgVal.Archivematica.BaseURL = filepath.Join(base, "staging", config.SystemArchivematica)
	cfgVal.Archivematica.Host = "http://archivematica.invalid"
	cfgVal.Archivematica.Username = "test"
	cfgVal.Archivematica.Password = "test"
	cfgVal.ARCLib.BaseURL = filepath.Join(base, "staging", config.SystemARCLib)
	cfgVal.Export.SiteName = "demo"
	cfgVal.Export.FieldConfiguration = DefaultFieldConfiguration
	cfgVal.Lock.PollInterval = 1
	cfgVal.Lock.Timeout = 1
	cfgVal.Lock.WorkerTimeout = 1
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithSystem selects the LTP backend and points it at host.
func WithSystem(system, host string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.LTPSystem = system
		switch system {
		case config.SystemARCLib:
			b.cfg.ARCLib.Host = host
			b.cfg.ARCLib.Username = "test"
			b.cfg.ARCLib.Password = "test"
			b.cfg.ARCLib.ProducerProfileID = "producer"
		default:
			b.cfg.Archivematica.Host = host
		}
	}
}

// WithFieldConfiguration replaces the field configuration text.
func WithFieldConfiguration(text string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.FieldConfiguration = text
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
	return filepath.Dir(cfg.Paths.StagingDir)
}
