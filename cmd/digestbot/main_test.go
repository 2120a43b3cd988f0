package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-chat-digest/internal/config"
	"github.com/tbourn/go-chat-digest/internal/domain"
	"github.com/tbourn/go-chat-digest/internal/repo"
)

// testEnv points the configuration at a fresh SQLite file with the bot off.
func testEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "bot.db")
	t.Setenv("DIGEST_ENV_FILE", "")
	t.Setenv("BOT_ENABLED", "false")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("ADMIN_ID", "42")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", path)
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T) {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	db, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer func() { _ = repo.Close(db) }()

	now := time.Now().UTC()
	msgs := []domain.Message{
		{ChatID: -1, MessageID: 1, UserID: 7, Text: "hi", Timestamp: now.Add(-time.Minute)},
		{ChatID: -2, MessageID: 1, UserID: 8, Text: "yo", Timestamp: now},
	}
	for i := range msgs {
		msgs[i].SetReactions(domain.Reactions{})
	}
	if err := db.Create(&msgs).Error; err != nil {
		t.Fatalf("seed messages: %v", err)
	}
	entries := []domain.CacheEntry{
		{Key: "expired", Value: "x", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		{Key: "live", Value: "y", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}
	if err := db.Create(&entries).Error; err != nil {
		t.Fatalf("seed cache: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != "digestbot dev" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatsCommand_JSON(t *testing.T) {
	testEnv(t)
	seed(t)

	out, err := run(t, "stats", "--json")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var st repo.Stats
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if st.Chats != 2 || st.Messages != 2 || st.ActiveCacheEntries != 1 || st.LastMessageAt == nil {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestStatsCommand_Text(t *testing.T) {
	testEnv(t)

	out, err := run(t, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "messages:             0") || strings.Contains(out, "last message at") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCleanupCommand(t *testing.T) {
	testEnv(t)
	seed(t)

	out, err := run(t, "cleanup")
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if strings.TrimSpace(out) != "removed 1 expired cache entries" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	testEnv(t)
	t.Setenv("ADMIN_ID", "0")
	if _, err := run(t, "stats"); err == nil || !strings.Contains(err.Error(), "ADMIN_ID") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestLoad_ExplicitEnvFileMustExist(t *testing.T) {
	testEnv(t)
	missing := filepath.Join(t.TempDir(), "nope.env")
	if _, err := run(t, "--env-file", missing, "stats"); err == nil {
		t.Fatalf("missing --env-file should fail")
	}
}

func TestBuildApp_Wiring(t *testing.T) {
	testEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	db, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer func() { _ = repo.Close(db) }()

	a, err := buildApp(cfg, db, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	if a.analysis.Store != a.messages || a.analysis.Cache != a.cache || a.analysis.Recorder != a.metrics {
		t.Fatalf("analysis service not wired to shared components")
	}
	if a.analysis.Settings != cfg.Analysis {
		t.Fatalf("analysis settings not propagated")
	}
	if a.sweeper.Schedule != cfg.CacheCleanupSchedule || len(a.sweeper.Tasks) != 1 {
		t.Fatalf("unexpected sweeper: %+v", a.sweeper)
	}

	cfg.OpenAI.APIKey = " "
	if _, err := buildApp(cfg, db, prometheus.NewRegistry()); err == nil {
		t.Fatalf("buildApp should fail without an api key")
	}
}
