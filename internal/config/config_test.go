package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "3490" {
		t.Fatalf("unexpected port: %q", cfg.Port)
	}
	if cfg.Backlog != 10 || cfg.PoolSize != 10 || cfg.MaxMessageSize != 100 {
		t.Fatalf("unexpected sizes: %+v", cfg)
	}
	if cfg.RejectDelay != time.Second {
		t.Fatalf("unexpected reject delay: %v", cfg.RejectDelay)
	}
	if cfg.EtcdEnabled() {
		t.Fatalf("etcd should be disabled by default")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("unexpected log level: %v", cfg.SlogLevel())
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
port: "4000"
pool_size: 3
reject_delay: 250ms
etcd_endpoints:
  - 127.0.0.1:2379
log_level: debug
stats_schedule: "*/5 * * * *"
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "4000" || cfg.PoolSize != 3 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.RejectDelay != 250*time.Millisecond {
		t.Fatalf("unexpected reject delay: %v", cfg.RejectDelay)
	}
	if !cfg.EtcdEnabled() || cfg.EtcdEndpoints[0] != "127.0.0.1:2379" {
		t.Fatalf("unexpected etcd endpoints: %v", cfg.EtcdEndpoints)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("unexpected log level: %v", cfg.SlogLevel())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ECHO_POOL_SIZE", "7")
	t.Setenv("ECHO_MAX_MESSAGE_SIZE", "64")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PoolSize != 7 || cfg.MaxMessageSize != 64 {
		t.Fatalf("unexpected env overrides: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero pool":     "pool_size: 0\n",
		"bad port":      "port: http\n",
		"bad cron":      "stats_schedule: \"every now and then\"\n",
		"bad level":     "log_level: loud\n",
		"bad http addr": "http_listen_addr: nope\n",
	}
	for name, content := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
			t.Fatalf("%s: write config: %v", name, err)
		}
		if _, err := Load(dir); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("port: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected parse error")
	}
}
