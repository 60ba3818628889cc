// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists research sessions in SQLite so past results can
// be listed, reopened, and searched without re-querying the providers.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultPath is the database location used when none is configured.
const DefaultPath = "data/evidence.db"

const defaultListLimit = 20

// ErrNotFound is returned when no session matches an ID.
var ErrNotFound = errors.New("session not found")

// ErrAmbiguousID is returned when an ID prefix matches several sessions.
var ErrAmbiguousID = errors.New("session id prefix is ambiguous")

// Store manages the session history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at cfg.Path and creates the
// schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			tier TEXT NOT NULL,
			category TEXT,
			started_at TEXT NOT NULL,
			duration_ms INTEGER,
			rounds INTEGER,
			sources_found INTEGER,
			selected INTEGER,
			total_tokens INTEGER,
			completeness REAL,
			stop_reason TEXT,
			output TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS selected_sources (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			identity_key TEXT,
			kind TEXT NOT NULL,
			title TEXT,
			citation TEXT,
			relevance REAL,
			badge TEXT,
			tokens INTEGER,
			PRIMARY KEY (session_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_selected_identity ON selected_sources(identity_key)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SessionSummary is one row of the history listing.
type SessionSummary struct {
	ID           string        `json:"id" yaml:"id"`
	Question     string        `json:"question" yaml:"question"`
	Tier         types.Tier    `json:"tier" yaml:"tier"`
	Category     string        `json:"category" yaml:"category"`
	StartedAt    time.Time     `json:"started_at" yaml:"started_at"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Rounds       int           `json:"rounds" yaml:"rounds"`
	SourcesFound int           `json:"sources_found" yaml:"sources_found"`
	Selected     int           `json:"selected" yaml:"selected"`
	TotalTokens  int           `json:"total_tokens" yaml:"total_tokens"`
	Completeness float64       `json:"completeness" yaml:"completeness"`
	StopReason   string        `json:"stop_reason" yaml:"stop_reason"`
}

// SourceHit is a previously selected source matching a history search.
type SourceHit struct {
	SessionID string             `json:"session_id" yaml:"session_id"`
	Question  string             `json:"question" yaml:"question"`
	Position  int                `json:"position" yaml:"position"`
	Kind      types.ProviderKind `json:"kind" yaml:"kind"`
	Title     string             `json:"title" yaml:"title"`
	Citation  string             `json:"citation" yaml:"citation"`
	Relevance float64            `json:"relevance" yaml:"relevance"`
}

// SaveSession stores out and its selected sources. Saving a session ID
// again replaces the earlier record.
func (s *Store) SaveSession(ctx context.Context, out *types.ResearchOutput) error {
	if out == nil || out.SessionID == "" {
		return fmt.Errorf("saving session: missing session id")
	}
	blob, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, out.SessionID); err != nil {
		return fmt.Errorf("replacing session: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, question, tier, category, started_at, duration_ms, rounds,
			sources_found, selected, total_tokens, completeness, stop_reason, output)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.SessionID, out.Question, string(out.Tier), string(out.Analysis.Category),
		out.StartedAt.UTC().Format(time.RFC3339Nano), out.Duration.Milliseconds(),
		out.Summary.RoundsCompleted, out.Summary.TotalSourcesFound, out.Summary.SelectedCount,
		out.Summary.TotalTokens, out.Summary.Completeness, out.Decision.Reason, string(blob),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO selected_sources (session_id, position, identity_key, kind, title, citation, relevance, badge, tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, sel := range out.Selected {
		_, err := stmt.ExecContext(ctx,
			out.SessionID, i+1, sel.Source.IdentityKey(), string(sel.SourceType),
			sel.Source.Title, sel.Citation, sel.RelevanceScore, sel.CredibilityBadge, sel.EstimatedTokens,
		)
		if err != nil {
			return fmt.Errorf("inserting source %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// ListSessions returns the most recent sessions first. limit <= 0 uses 20.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, tier, category, started_at, duration_ms, rounds,
			sources_found, selected, total_tokens, completeness, stop_reason
		 FROM sessions ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			ss         SessionSummary
			tier       string
			category   sql.NullString
			startedAt  string
			durationMS sql.NullInt64
			stopReason sql.NullString
		)
		if err := rows.Scan(&ss.ID, &ss.Question, &tier, &category, &startedAt, &durationMS,
			&ss.Rounds, &ss.SourcesFound, &ss.Selected, &ss.TotalTokens, &ss.Completeness, &stopReason); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ss.Tier = types.Tier(tier)
		ss.Category = category.String
		ss.StopReason = stopReason.String
		ss.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			ss.StartedAt = t
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// GetSession returns the stored output for id. A unique prefix of the ID
// is accepted.
func (s *Store) GetSession(ctx context.Context, id string) (*types.ResearchOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, output FROM sessions WHERE id = ? OR id LIKE ? ESCAPE '\' LIMIT 2`,
		id, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	defer rows.Close()

	var matches []string
	var blobs []string
	for rows.Next() {
		var gotID, blob string
		if err := rows.Scan(&gotID, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if gotID == id {
			matches, blobs = []string{gotID}, []string{blob}
			break
		}
		matches = append(matches, gotID)
		blobs = append(blobs, blob)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}

	var out types.ResearchOutput
	if err := json.Unmarshal([]byte(blobs[0]), &out); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", matches[0], err)
	}
	return &out, nil
}

// SearchSources finds previously selected sources whose title or
// citation contains term, best relevance first.
func (s *Store) SearchSources(ctx context.Context, term string, limit int) ([]SourceHit, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("search term is empty")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT ss.session_id, s.question, ss.position, ss.kind, ss.title, ss.citation, ss.relevance
		 FROM selected_sources ss
		 JOIN sessions s ON s.id = ss.session_id
		 WHERE lower(ss.title) LIKE ? ESCAPE '\' OR lower(ss.citation) LIKE ? ESCAPE '\'
		 ORDER BY ss.relevance DESC, ss.session_id, ss.position
		 LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching sources: %w", err)
	}
	defer rows.Close()

	var hits []SourceHit
	for rows.Next() {
		var (
			h        SourceHit
			kind     string
			title    sql.NullString
			citation sql.NullString
		)
		if err := rows.Scan(&h.SessionID, &h.Question, &h.Position, &kind, &title, &citation, &h.Relevance); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		h.Kind = types.ProviderKind(kind)
		h.Title = title.String
		h.Citation = citation.String
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
