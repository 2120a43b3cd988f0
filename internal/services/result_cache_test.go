package services

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-chat-digest/internal/domain"
)

func TestResultCache_GetSetExpire(t *testing.T) {
	db := newSvcDB(t)
	clock := newClock(t0)
	c := &ResultCache{DB: db, FailClosed: true, Now: clock.Now}
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Fatalf("empty cache Get = (%v, %v)", hit, err)
	}
	if err := c.Set(ctx, "k", "report", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || v != "report" {
		t.Fatalf("Get = (%q, %v, %v)", v, hit, err)
	}

	clock.Set(t0.Add(time.Hour))
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Fatalf("entry must be absent once expires_at <= now")
	}
}

func TestResultCache_CleanupAndCount(t *testing.T) {
	db := newSvcDB(t)
	clock := newClock(t0)
	c := &ResultCache{DB: db, FailClosed: true, Now: clock.Now}
	ctx := context.Background()

	_ = c.Set(ctx, "short", "a", time.Minute)
	_ = c.Set(ctx, "long", "b", time.Hour)

	clock.Set(t0.Add(2 * time.Minute))
	n, err := c.CountActive(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CountActive = (%d, %v), want 1", n, err)
	}
	removed, err := c.CleanupExpired(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("CleanupExpired = (%d, %v), want 1", removed, err)
	}
	if _, hit, _ := c.Get(ctx, "long"); !hit {
		t.Fatalf("live entry removed by cleanup")
	}
}

func TestResultCache_ReadFailurePolicy(t *testing.T) {
	ctx := context.Background()

	db := newSvcDB(t)
	if err := db.Migrator().DropTable(&domain.CacheEntry{}); err != nil {
		t.Fatalf("drop: %v", err)
	}

	closed := NewResultCache(db, true)
	if _, hit, err := closed.Get(ctx, "k"); hit || err != nil {
		t.Fatalf("fail-closed Get = (%v, %v), want miss without error", hit, err)
	}

	open := NewResultCache(db, false)
	if _, _, err := open.Get(ctx, "k"); err == nil {
		t.Fatalf("Get should propagate storage errors when not failing closed")
	}
}
