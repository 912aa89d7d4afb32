package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Admin != "admin" {
		t.Fatalf("default admin = %q", cfg.Admin)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.ShutdownTimeout != 15*time.Second {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if cfg.Store.Driver != "memory" || cfg.Blob.Driver != "fs" {
		t.Fatalf("unexpected backend defaults: store=%q blob=%q", cfg.Store.Driver, cfg.Blob.Driver)
	}
	if cfg.RateLimit.Requests != 60 || cfg.RateLimit.Window != time.Minute || cfg.RateLimit.FailClosed {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provcore.yaml")
	doc := `
admin: registrar
http:
  addr: ":9090"
  read_timeout: 5s
  shutdown_timeout: 30s
store:
  driver: sqlite
  path: /var/lib/provcore/state.db
blob:
  driver: s3
  s3:
    region: eu-west-1
    bucket: provcore-bundles
    endpoint: http://minio.local:9000
    path_style: true
seed:
  path: /etc/provcore/participants.yaml
log:
  level: debug
  development: true
tracing:
  enabled: true
  exporter: file
  file_path: /var/log/provcore/traces.jsonl
rate_limit:
  requests: 10
  window: 30s
  backend: memory
  fail_closed: true
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Admin != "registrar" {
		t.Fatalf("admin = %q", cfg.Admin)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.HTTP.ReadTimeout != 5*time.Second || cfg.HTTP.ShutdownTimeout != 30*time.Second {
		t.Fatalf("unexpected http config: %+v", cfg.HTTP)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "/var/lib/provcore/state.db" {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Blob.Driver != "s3" || cfg.Blob.S3.Bucket != "provcore-bundles" || !cfg.Blob.S3.PathStyle {
		t.Fatalf("unexpected blob config: %+v", cfg.Blob)
	}
	if cfg.Blob.S3.Region != "eu-west-1" || cfg.Blob.S3.Endpoint != "http://minio.local:9000" {
		t.Fatalf("unexpected s3 config: %+v", cfg.Blob.S3)
	}
	if cfg.Seed.Path != "/etc/provcore/participants.yaml" {
		t.Fatalf("unexpected seed config: %+v", cfg.Seed)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Development {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "file" {
		t.Fatalf("unexpected tracing config: %+v", cfg.Tracing)
	}
	if cfg.RateLimit.Requests != 10 || cfg.RateLimit.Window != 30*time.Second || !cfg.RateLimit.FailClosed {
		t.Fatalf("unexpected rate limit config: %+v", cfg.RateLimit)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("PROVCORE_HTTP_ADDR", ":7070")
	t.Setenv("PROVCORE_STORE_DRIVER", "sqlite")
	t.Setenv("PROVCORE_STORE_PATH", "override.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("env override ignored, addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "override.db" {
		t.Fatalf("env override ignored, store = %+v", cfg.Store)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provcore.yaml")
	if err := os.WriteFile(path, []byte("store:\n  driver: etcd\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown store driver") {
		t.Fatalf("expected driver validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty admin", func(c *Config) { c.Admin = " " }, "admin identity is required"},
		{"sqlite without path", func(c *Config) { c.Store.Driver = "sqlite"; c.Store.Path = "" }, "store path is required"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, "store dsn is required"},
		{"unknown blob driver", func(c *Config) { c.Blob.Driver = "tape" }, "unknown blob driver"},
		{"s3 without bucket", func(c *Config) { c.Blob.Driver = "s3" }, "bucket is required"},
		{"unknown limiter backend", func(c *Config) { c.RateLimit.Backend = "etcd" }, "unknown rate limit backend"},
		{"redis without addr", func(c *Config) { c.RateLimit.Backend = "redis" }, "redis_addr is required"},
		{"non-positive window", func(c *Config) { c.RateLimit.Window = 0 }, "window must be positive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
