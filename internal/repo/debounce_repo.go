// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists the debounce clock: one last-execution
// timestamp per operation key.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-digest/internal/domain"
)

// GetLastExecution returns the last execution time recorded for operation,
// or ErrNotFound when the operation never ran.
func GetLastExecution(ctx context.Context, db *gorm.DB, operation string) (time.Time, error) {
	var rec domain.DebounceRecord
	err := db.WithContext(ctx).Where("operation = ?", operation).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return rec.LastExecution.UTC(), nil
}

// UpsertExecution records at as the last execution time of operation.
func UpsertExecution(ctx context.Context, db *gorm.DB, operation string, at time.Time) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operation"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_execution"}),
	}).Create(&domain.DebounceRecord{Operation: operation, LastExecution: at.UTC()}).Error
}

// ClaimExecution atomically records now as the last execution of operation
// if, and only if, the previous execution is at least interval old (or
// absent). It reports whether the claim succeeded. The eligibility check
// and the write are a single conditional upsert, so two concurrent callers
// can never both claim the same slot.
func ClaimExecution(ctx context.Context, db *gorm.DB, operation string, now time.Time, interval time.Duration) (bool, error) {
	now = now.UTC()
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operation"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_execution"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "debounce.last_execution <= ?", Vars: []any{now.Add(-interval)}},
		}},
	}).Create(&domain.DebounceRecord{Operation: operation, LastExecution: now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
