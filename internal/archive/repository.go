package archive

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/errors"
	"codeberg.org/mutker/vamon/internal/logger"
	"codeberg.org/mutker/vamon/internal/sink"

	_ "github.com/mattn/go-sqlite3"
)

type Repository interface {
	BeginSession(acq config.Acquisition, units string) (int64, error)
	RecordSample(sessionID int64, elapsedMS float64, values string) error
	FinishSession(sessionID int64, sum sink.Summary, units []string) error
	Close() error
}

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug().Msgf("Initializing session archive at: %s", cfg.DBPath)

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errors.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, errors.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteRepository{
		db: db,
	}, nil
}

func (r *sqliteRepository) BeginSession(acq config.Acquisition, units string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`
        INSERT INTO sessions (
            started_at, interval_magnitude, interval_unit,
            duration, oversample, update_ms, units
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
    `,
		time.Now().Unix(),
		acq.Interval,
		acq.Unit,
		acq.Duration,
		acq.Oversample,
		acq.Update,
		units,
	)
	if err != nil {
		return 0, errors.Wrap(ErrStorageAccess, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(ErrStorageAccess, err)
	}

	return id, nil
}

func (r *sqliteRepository) RecordSample(sessionID int64, elapsedMS float64, values string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
        INSERT INTO samples (session_id, elapsed_ms, channel_values)
        VALUES (?, ?, ?)
    `, sessionID, elapsedMS, values)
	if err != nil {
		return errors.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) FinishSession(sessionID int64, sum sink.Summary, units []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
        UPDATE sessions
        SET sample_count = ?, elapsed_ms = ?, degenerate = ?
        WHERE id = ?
    `,
		sum.Samples,
		float64(sum.Elapsed)/float64(time.Millisecond),
		boolToInt(sum.Degenerate),
		sessionID,
	)
	if err != nil {
		return errors.Wrap(ErrStorageAccess, err)
	}

	for i, ch := range sum.Channels {
		unit := ""
		if i < len(units) {
			unit = units[i]
		}
		_, err := r.db.Exec(`
            INSERT INTO channel_stats (session_id, channel, unit, min, mean, max)
            VALUES (?, ?, ?, ?, ?, ?)
        `, sessionID, i, unit, ch.Min, ch.Mean, ch.Max)
		if err != nil {
			return errors.Wrap(ErrStorageAccess, err)
		}
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errors.Wrap(ErrStorageClose, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
