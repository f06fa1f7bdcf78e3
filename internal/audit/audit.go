// Package audit is an optional, local query-audit trail: when configured,
// every federated query run through the Coordinator is appended as one row
// to a SQLite database, for after-the-fact debugging of query shapes and
// latency. It is narrowed to the single model and single write path this
// proxy needs — gorm's multi-dialect dispatch and the generic chainable
// query builder aren't worth carrying for one INSERT-only table.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oit-uog/solr-federator/pkg/logger"
	"github.com/oit-uog/solr-federator/pkg/metrics"
)

// QueryLog is one row of the audit trail: one federated query, as run
// through Coordinator.Query.
type QueryLog struct {
	ID          uint      `gorm:"primarykey"`
	RanAt       time.Time `gorm:"index"`
	Collections string    `gorm:"size:512"` // comma-joined, short names
	Sort        string    `gorm:"size:128"`
	Page        int
	Total       int
	DurationMS  int64
}

func (QueryLog) TableName() string { return "query_log" }

// Recorder appends QueryLog rows to a SQLite database. A nil *Recorder is
// valid and every method on it no-ops, so the audit trail can be left
// unconfigured with zero special-casing at call sites.
type Recorder struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates the query_log table. Returns a nil *Recorder, nil error when
// path is empty, so callers can unconditionally hold onto the result.
func Open(path string) (*Recorder, error) {
	if path == "" {
		return nil, nil
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	if err := db.AutoMigrate(&QueryLog{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}

	return &Recorder{db: db}, nil
}

// Record appends one row describing a completed federated query. Errors are
// swallowed beyond the metrics counter they drive — a broken audit trail
// must never fail the query it's recording.
func (r *Recorder) Record(ctx context.Context, collections []string, sort string, page, total int, duration time.Duration) {
	if r == nil || r.db == nil {
		return
	}

	start := time.Now()
	row := &QueryLog{
		RanAt:       start,
		Collections: strings.Join(collections, ","),
		Sort:        sort,
		Page:        page,
		Total:       total,
		DurationMS:  duration.Milliseconds(),
	}

	err := r.db.WithContext(ctx).Create(row).Error
	metrics.ObserveDBQuery("insert", start)
	if err != nil {
		logger.WithCtx(ctx).Warn("audit: failed to record query", "error", err)
	}
}
