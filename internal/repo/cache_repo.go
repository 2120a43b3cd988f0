// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores memoized analysis results keyed by a
// content hash, each with its own expiry.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-digest/internal/domain"
)

// GetCache returns a non-expired entry or ErrNotFound.
// Rows with expires_at <= now are never returned.
func GetCache(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.CacheEntry, error) {
	var e domain.CacheEntry
	err := db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, now.UTC()).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SetCache upserts key with value, created now and expiring after ttl.
func SetCache(ctx context.Context, db *gorm.DB, key, value string, now time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("cache ttl must be positive")
	}
	now = now.UTC()
	e := &domain.CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "created_at", "expires_at"}),
	}).Create(e).Error
}

// DeleteExpiredCache removes every entry with expires_at <= now and returns
// the number of rows removed.
func DeleteExpiredCache(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.CacheEntry{})
	return res.RowsAffected, res.Error
}

// CountActiveCache returns the number of entries that are still valid at now.
func CountActiveCache(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.CacheEntry{}).
		Where("expires_at > ?", now.UTC()).
		Count(&n).Error
	return n, err
}
