package archive_test

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/vamon/internal/archive"
	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/sink"
	"codeberg.org/mutker/vamon/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) (*archive.Recorder, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	rec, err := archive.NewRecorder(archive.Config{DBPath: dbPath}, []string{"V", "mA"})
	require.NoError(t, err)

	return rec, dbPath
}

func TestRecorderSessionLifecycle(t *testing.T) {
	rec, dbPath := newTestRecorder(t)
	defer rec.Close()

	acq := config.Acquisition{Interval: 1, Unit: "s", Duration: 5, Update: 500}
	require.NoError(t, rec.Open())
	require.NoError(t, rec.WriteSettings(acq))
	require.NoError(t, rec.WriteSample(0, []float64{5.0, 25.0}))
	require.NoError(t, rec.WriteSample(time.Second, []float64{5.1, 24.9}))
	require.NoError(t, rec.WriteSummary(sink.Summary{
		Samples: 2,
		Elapsed: time.Second,
		Channels: []stats.ChannelResult{
			{Min: 5.0, Mean: 5.05, Max: 5.1},
			{Min: 24.9, Mean: 24.95, Max: 25.0},
		},
	}))

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count, elapsed, degenerate int
	var unit string
	row := db.QueryRow(`SELECT sample_count, elapsed_ms, degenerate, interval_unit FROM sessions`)
	require.NoError(t, row.Scan(&count, &elapsed, &degenerate, &unit))
	assert.Equal(t, 2, count)
	assert.Equal(t, 1000, elapsed)
	assert.Zero(t, degenerate)
	assert.Equal(t, "s", unit)

	var samples int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&samples))
	assert.Equal(t, 2, samples)

	var chMin, chMax float64
	row = db.QueryRow(`SELECT min, max FROM channel_stats WHERE channel = 0`)
	require.NoError(t, row.Scan(&chMin, &chMax))
	assert.InDelta(t, 5.0, chMin, 1e-9)
	assert.InDelta(t, 5.1, chMax, 1e-9)
}

func TestRecorderDegenerateSession(t *testing.T) {
	rec, dbPath := newTestRecorder(t)
	defer rec.Close()

	require.NoError(t, rec.WriteSettings(config.Acquisition{Interval: 1, Unit: "s"}))
	require.NoError(t, rec.WriteSummary(sink.Summary{Degenerate: true}))

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count, degenerate int
	row := db.QueryRow(`SELECT sample_count, degenerate FROM sessions`)
	require.NoError(t, row.Scan(&count, &degenerate))
	assert.Zero(t, count)
	assert.Equal(t, 1, degenerate)

	var nStats int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM channel_stats`).Scan(&nStats))
	assert.Zero(t, nStats)
}

func TestRecorderSampleWithoutSession(t *testing.T) {
	rec, _ := newTestRecorder(t)
	defer rec.Close()

	assert.Error(t, rec.WriteSample(0, []float64{1.0}))
	assert.Error(t, rec.WriteSummary(sink.Summary{}))
}

func TestRecorderConsecutiveSessions(t *testing.T) {
	rec, dbPath := newTestRecorder(t)
	defer rec.Close()

	acq := config.Acquisition{Interval: 1, Unit: "s"}
	for i := 0; i < 2; i++ {
		require.NoError(t, rec.WriteSettings(acq))
		require.NoError(t, rec.WriteSample(0, []float64{5.0, 25.0}))
		require.NoError(t, rec.WriteSummary(sink.Summary{Samples: 1}))
	}

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var sessions int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&sessions))
	assert.Equal(t, 2, sessions)
}

func TestRecorderRejectsEmptyPath(t *testing.T) {
	_, err := archive.NewRecorder(archive.Config{}, nil)
	assert.Error(t, err)
}
