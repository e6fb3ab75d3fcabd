// internal/store/sqlite.go
//
// Optional SQLite archive. Sessions and trial rows accumulate across runs in
// one queryable database, complementing the per-session CSV files.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/attnlab/nback/internal/trial"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	participant   TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	version       TEXT NOT NULL,
	seed          INTEGER NOT NULL,
	soa_ms        INTEGER NOT NULL,
	stimulus_ms   INTEGER NOT NULL,
	target_rate   REAL NOT NULL,
	completed     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS trials (
	session_id   TEXT NOT NULL REFERENCES sessions(id),
	block_idx    INTEGER NOT NULL,
	trial_idx    INTEGER NOT NULL,
	n_back       INTEGER NOT NULL,
	practice     INTEGER NOT NULL,
	stimulus     TEXT NOT NULL,
	is_target    INTEGER NOT NULL,
	lure_type    TEXT NOT NULL,
	iti_ms       INTEGER NOT NULL,
	onset_ms     REAL NOT NULL,
	response_key TEXT NOT NULL,
	rt_ms        REAL,
	correct      INTEGER NOT NULL,
	stim_code    INTEGER NOT NULL,
	resp_code    INTEGER,
	PRIMARY KEY (session_id, block_idx, trial_idx)
);
`

// Archive is a SQLite-backed store accumulating sessions across runs.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) the archive database at path.
func OpenArchive(path string) (*Archive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store: archive path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// BeginSession registers a session before its first block.
func (a *Archive) BeginSession(ctx context.Context, meta Meta, startedAt time.Time) error {
	if a == nil || a.db == nil {
		return fmt.Errorf("store: archive is not configured")
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO sessions (id, participant, started_at, version, seed, soa_ms, stimulus_ms, target_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.SessionID, meta.Participant, startedAt.UTC().Format(time.RFC3339),
		meta.Version, meta.Seed, meta.SOAMs, meta.StimulusMs, meta.TargetRate,
	)
	if err != nil {
		return fmt.Errorf("store: insert session: %w", err)
	}
	return nil
}

// SaveBlock appends one block's trial records inside a transaction.
func (a *Archive) SaveBlock(ctx context.Context, sessionID string, blockIdx, nBack int, practice bool, records []trial.Record) error {
	if a == nil || a.db == nil {
		return fmt.Errorf("store: archive is not configured")
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trials (session_id, block_idx, trial_idx, n_back, practice,
			stimulus, is_target, lure_type, iti_ms, onset_ms,
			response_key, rt_ms, correct, stim_code, resp_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var rt, respCode any
		if rec.Responded {
			rt = float64(rec.RT.Microseconds()) / 1000.0
			respCode = rec.RespCode
		}
		_, err := stmt.ExecContext(ctx,
			sessionID, blockIdx, rec.Index+1, nBack, boolInt(practice),
			rec.Stimulus, boolInt(rec.IsTarget), string(rec.Lure), rec.ITIMs,
			float64(rec.Onset.Microseconds())/1000.0,
			rec.ResponseKey, rt, boolInt(rec.Correct), rec.StimCode, respCode,
		)
		if err != nil {
			return fmt.Errorf("store: insert trial %d/%d: %w", blockIdx, rec.Index+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit block: %w", err)
	}
	return nil
}

// FinishSession marks a session as completed.
func (a *Archive) FinishSession(ctx context.Context, sessionID string) error {
	if a == nil || a.db == nil {
		return fmt.Errorf("store: archive is not configured")
	}
	if _, err := a.db.ExecContext(ctx, `UPDATE sessions SET completed = 1 WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("store: finish session: %w", err)
	}
	return nil
}

// TrialCount reports the archived trial rows for one session.
func (a *Archive) TrialCount(ctx context.Context, sessionID string) (int, error) {
	if a == nil || a.db == nil {
		return 0, fmt.Errorf("store: archive is not configured")
	}
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trials WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count trials: %w", err)
	}
	return n, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
