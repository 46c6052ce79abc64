package database

import (
	"context"

	"gorm.io/gorm"
)

// QueryLogs reads and writes the lookup audit trail.
type QueryLogs struct {
	db *gorm.DB
}

func NewQueryLogs(db *gorm.DB) *QueryLogs {
	return &QueryLogs{db: db}
}

func (q *QueryLogs) Record(ctx context.Context, entry *QueryLog) error {
	return q.db.WithContext(ctx).Create(entry).Error
}

// List returns one page of entries, newest first, and the total count.
// Portal filters when not empty.
func (q *QueryLogs) List(ctx context.Context, portal string, page, limit int) ([]QueryLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	scoped := func() *gorm.DB {
		tx := q.db.WithContext(ctx).Model(&QueryLog{})
		if portal != "" {
			tx = tx.Where("portal = ?", portal)
		}
		return tx
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []QueryLog
	err := scoped().
		Order("query_time DESC").Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Ping reports whether the database answers.
func (q *QueryLogs) Ping(ctx context.Context) error {
	var count int64
	return q.db.WithContext(ctx).Model(&QueryLog{}).Count(&count).Error
}
