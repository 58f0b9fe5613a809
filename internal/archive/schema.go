package archive

import (
	"database/sql"

	"codeberg.org/mutker/vamon/internal/errors"
)

// initSchema initializes the database schema for the session archive
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS sessions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            started_at INTEGER NOT NULL,
            interval_magnitude INTEGER,
            interval_unit TEXT,
            duration INTEGER,
            oversample INTEGER,
            update_ms INTEGER,
            units TEXT,
            sample_count INTEGER NOT NULL DEFAULT 0,
            elapsed_ms REAL NOT NULL DEFAULT 0,
            degenerate INTEGER NOT NULL DEFAULT 0
        );
        CREATE TABLE IF NOT EXISTS samples (
            session_id INTEGER NOT NULL REFERENCES sessions(id),
            elapsed_ms REAL NOT NULL,
            channel_values TEXT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_samples_session ON samples(session_id);
        CREATE TABLE IF NOT EXISTS channel_stats (
            session_id INTEGER NOT NULL REFERENCES sessions(id),
            channel INTEGER NOT NULL,
            unit TEXT,
            min REAL,
            mean REAL,
            max REAL
        )
    `)
	if err != nil {
		return errors.Wrap(ErrStorageInit, err)
	}

	return nil
}
