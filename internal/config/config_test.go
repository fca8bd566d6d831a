package config

import (
	"testing"

	"go.uber.org/zap"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	t.Setenv(key, value)
}

func TestLoadResolvesRequiredAndOptionalVars(t *testing.T) {
	setEnv(t, "BOT_NAME", "lara")
	setEnv(t, "ARCHIVE_DIR", "/tmp/archive")
	setEnv(t, "FROM", "ops@example.test")
	setEnv(t, "DB_URL", "postgres://db")

	cfg := Load(zap.NewNop())
	if cfg.BotName != "lara" || cfg.ArchiveDir != "/tmp/archive" || cfg.From != "ops@example.test" {
		t.Errorf("Load() = %+v, missing required fields", cfg)
	}
	if cfg.DBURL != "postgres://db" {
		t.Errorf("DBURL = %q, want postgres://db", cfg.DBURL)
	}
	if cfg.BotURL != defaultBotURL {
		t.Errorf("BotURL = %q, want default %q", cfg.BotURL, defaultBotURL)
	}
}

func TestUserAgentFormat(t *testing.T) {
	cfg := Config{BotName: "lara", BotVersion: "1.0", BotURL: "https://example.test/bot"}
	want := "lara/1.0 https://example.test/bot"
	if got := cfg.UserAgent(); got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}

func TestBotURLOverride(t *testing.T) {
	setEnv(t, "BOT_NAME", "lara")
	setEnv(t, "ARCHIVE_DIR", "/tmp/archive")
	setEnv(t, "FROM", "ops@example.test")
	setEnv(t, "BOT_URL", "https://lara.example/bot")

	cfg := Load(zap.NewNop())
	if cfg.BotURL != "https://lara.example/bot" {
		t.Errorf("BotURL = %q, want override", cfg.BotURL)
	}
}
