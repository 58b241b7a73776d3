// Package state persists the per-target baseline across restarts.
//
// Only the single last-seen fingerprint per target is stored — never line
// content and never more than one version. After a restart the first cycle
// compares against the stored fingerprint; since the previous line content
// is gone, a change detected then degrades to a coarse presence/fingerprint
// notice, which self-heals on the following cycle.
//
// The check log is observability: one row per poll cycle, with retention
// cleanup so it never grows without bound.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/chwatch/idgen"
	"github.com/hazyhaar/chwatch/target"
)

// Schema is the chwatch state schema.
const Schema = `
CREATE TABLE IF NOT EXISTS targets (
    identifier       TEXT PRIMARY KEY,
    kind             TEXT NOT NULL CHECK(kind IN ('file','url')),
    last_fingerprint TEXT NOT NULL DEFAULT '',
    last_present     INTEGER NOT NULL DEFAULT 0 CHECK(last_present IN (0, 1)),
    last_checked_at  INTEGER NOT NULL DEFAULT 0,
    last_changed_at  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS check_log (
    id          TEXT PRIMARY KEY,
    identifier  TEXT NOT NULL,
    status      TEXT NOT NULL,
    fingerprint TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    checked_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_check_log_target ON check_log(identifier, checked_at DESC);
`

// Baseline is the persisted last-seen state of one target.
type Baseline struct {
	Fingerprint string
	Present     bool
	CheckedAt   time.Time
	ChangedAt   time.Time
}

// Check is one check-log row.
type Check struct {
	Target      string
	Status      string // "unchanged" | "changed" | "absent"
	Fingerprint string
	Error       string
	Duration    time.Duration
	CheckedAt   time.Time
}

// Store wraps the state database.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets a custom ID generator for check-log rows.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates a Store from an already-opened database. Apply Schema
// via dbopen.WithSchema or Init before use.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		newID: idgen.Prefixed("chk_", idgen.Default),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Baseline returns the stored baseline for a target, or ok=false when the
// target has never been seen.
func (s *Store) Baseline(ctx context.Context, identifier string) (Baseline, bool, error) {
	var (
		b                  Baseline
		present            int
		checkedAt, changed int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT last_fingerprint, last_present, last_checked_at, last_changed_at
		FROM targets WHERE identifier = ?`, identifier).
		Scan(&b.Fingerprint, &present, &checkedAt, &changed)
	if err == sql.ErrNoRows {
		return Baseline{}, false, nil
	}
	if err != nil {
		return Baseline{}, false, fmt.Errorf("state: baseline %s: %w", identifier, err)
	}
	b.Present = present == 1
	b.CheckedAt = time.Unix(checkedAt, 0)
	b.ChangedAt = time.Unix(changed, 0)
	return b, true, nil
}

// SaveBaseline upserts the target's last-seen snapshot state. changed marks
// whether this cycle detected a fingerprint transition.
func (s *Store) SaveBaseline(ctx context.Context, t target.Target, fingerprint string, present, changed bool) error {
	now := time.Now().Unix()
	presentInt := 0
	if present {
		presentInt = 1
	}
	changedAt := sql.NullInt64{}
	if changed {
		changedAt = sql.NullInt64{Int64: now, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (identifier, kind, last_fingerprint, last_present, last_checked_at, last_changed_at)
		VALUES (?, ?, ?, ?, ?, COALESCE(?, 0))
		ON CONFLICT(identifier) DO UPDATE SET
			last_fingerprint = excluded.last_fingerprint,
			last_present     = excluded.last_present,
			last_checked_at  = excluded.last_checked_at,
			last_changed_at  = COALESCE(?, targets.last_changed_at)`,
		t.Identifier, t.Kind.String(), fingerprint, presentInt, now, changedAt, changedAt)
	if err != nil {
		return fmt.Errorf("state: save baseline %s: %w", t.Identifier, err)
	}
	return nil
}

// LogCheck records one poll cycle in the check log.
func (s *Store) LogCheck(ctx context.Context, c Check) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO check_log (id, identifier, status, fingerprint, error, duration_ms, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.newID(), c.Target, c.Status, c.Fingerprint, c.Error,
		c.Duration.Milliseconds(), c.CheckedAt.Unix())
	if err != nil {
		return fmt.Errorf("state: log check: %w", err)
	}
	return nil
}

// Cleanup deletes check-log rows older than the retention window.
// Zero or negative retention means no cleanup.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-retention).Unix()
	_, err := s.db.ExecContext(ctx, `DELETE FROM check_log WHERE checked_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("state: cleanup: %w", err)
	}
	return nil
}
