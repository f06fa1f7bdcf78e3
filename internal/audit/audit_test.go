package audit_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oit-uog/solr-federator/internal/audit"
)

func TestOpenWithEmptyPathReturnsNilRecorder(t *testing.T) {
	rec, err := audit.Open("")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// nil *Recorder is still safe to call Record on.
	rec.Record(context.Background(), []string{"botany"}, "genus", 0, 10, time.Millisecond)
}

func TestRecordAppendsOneRow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	rec, err := audit.Open(dbPath)
	require.NoError(t, err)
	require.NotNil(t, rec)

	rec.Record(context.Background(), []string{"botany", "herps"}, "genus", 2, 42, 15*time.Millisecond)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	require.NoError(t, err)

	var rows []audit.QueryLog
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "botany,herps", rows[0].Collections)
	assert.Equal(t, "genus", rows[0].Sort)
	assert.Equal(t, 2, rows[0].Page)
	assert.Equal(t, 42, rows[0].Total)
	assert.Equal(t, int64(15), rows[0].DurationMS)
}
