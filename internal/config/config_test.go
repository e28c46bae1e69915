package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte("telegram:\n  token: abc\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telegram.Token != "abc" {
		t.Errorf("token = %q, want %q", cfg.Telegram.Token, "abc")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB.Path != "herald.db" {
		t.Errorf("db.path = %q, want %q", cfg.DB.Path, "herald.db")
	}
	if cfg.Scheduler.PollIntervalSec != 60 {
		t.Errorf("poll_interval_sec = %d, want 60", cfg.Scheduler.PollIntervalSec)
	}
	if cfg.Scheduler.BatchLimit != 100 {
		t.Errorf("batch_limit = %d, want 100", cfg.Scheduler.BatchLimit)
	}
	if cfg.Scheduler.SendTimeoutSec != 10 {
		t.Errorf("send_timeout_sec = %d, want 10", cfg.Scheduler.SendTimeoutSec)
	}
	if cfg.Messages.MaxLength != 4096 {
		t.Errorf("max_length = %d, want 4096", cfg.Messages.MaxLength)
	}
	if cfg.Timezone != "Local" {
		t.Errorf("timezone = %q, want %q", cfg.Timezone, "Local")
	}
	if cfg.Dashboard.Port != 8090 {
		t.Errorf("dashboard.port = %d, want 8090", cfg.Dashboard.Port)
	}
	if cfg.Digest.Schedule != "0 9 * * *" {
		t.Errorf("digest.schedule = %q, want %q", cfg.Digest.Schedule, "0 9 * * *")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log_level = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Telegram.BroadcastChatID != 0 {
		t.Errorf("broadcast_chat_id = %d, want 0 (fallback mode)", cfg.Telegram.BroadcastChatID)
	}
}

func TestParse_DSNSuppressesDefaultPath(t *testing.T) {
	cfg, err := Parse([]byte("db:\n  dsn: \"root@tcp(127.0.0.1:3306)/herald?parseTime=true\"\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB.Path != "" {
		t.Errorf("db.path = %q, want empty when dsn is set", cfg.DB.Path)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"negative poll", "scheduler:\n  poll_interval_sec: -5\n", "poll_interval_sec"},
		{"negative batch", "scheduler:\n  batch_limit: -1\n", "batch_limit"},
		{"negative max length", "messages:\n  max_length: -1\n", "max_length"},
		{"bad port", "dashboard:\n  port: 99999\n", "dashboard.port"},
		{"malformed yaml", "telegram: [\n", "parse"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), c.want)
			}
		})
	}
}

func TestParse_EnvTokenOverride(t *testing.T) {
	t.Setenv(envToken, "env-token")
	cfg, err := Parse([]byte("telegram:\n  token: file-token\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("token = %q, want env override %q", cfg.Telegram.Token, "env-token")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herald.yaml")
	content := "telegram:\n  token: abc\n  broadcast_chat_id: -100123\nscheduler:\n  poll_interval_sec: 15\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.BroadcastChatID != -100123 {
		t.Errorf("broadcast_chat_id = %d, want -100123", cfg.Telegram.BroadcastChatID)
	}
	if cfg.Scheduler.PollIntervalSec != 15 {
		t.Errorf("poll_interval_sec = %d, want 15", cfg.Scheduler.PollIntervalSec)
	}
}
