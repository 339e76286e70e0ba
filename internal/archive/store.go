// Package archive persists finished sessions: a SQLite store for querying
// past games and a rotated JSONL log of player records.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lorenzotomasdiez/chameleon/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at DATETIME,
	finished_at DATETIME,
	animal TEXT,
	chameleon TEXT,
	winner TEXT,
	vote_rule TEXT,
	players INTEGER
);
CREATE TABLE IF NOT EXISTS players (
	session_id TEXT,
	seat INTEGER,
	id TEXT,
	name TEXT,
	role TEXT,
	controller TEXT,
	controller_name TEXT,
	PRIMARY KEY (session_id, seat),
	FOREIGN KEY(session_id) REFERENCES sessions(id)
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	player_id TEXT,
	seq INTEGER,
	role TEXT,
	content TEXT,
	timestamp DATETIME,
	FOREIGN KEY(session_id) REFERENCES sessions(id)
);
CREATE TABLE IF NOT EXISTS votes (
	session_id TEXT,
	voter TEXT,
	accused TEXT,
	FOREIGN KEY(session_id) REFERENCES sessions(id)
);`

// Store archives session records in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// SessionSummary is one row of the sessions table.
type SessionSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Animal     string
	Chameleon  string
	Winner     game.Winner
	VoteRule   string
	Players    int
}

// Open opens or creates the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: creating tables: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Archive implements game.Archiver. A session id that already exists is
// replaced.
func (s *Store) Archive(ctx context.Context, rec *game.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"players", "messages", "votes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", rec.SessionID); err != nil {
			return fmt.Errorf("archive: clearing %s: %w", table, err)
		}
	}
	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO sessions (id, started_at, finished_at, animal, chameleon, winner, vote_rule, players) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.SessionID, rec.StartedAt, rec.FinishedAt, rec.Animal, rec.Chameleon, string(rec.Winner), string(rec.Settings.VoteRule), len(rec.Players),
	)
	if err != nil {
		return fmt.Errorf("archive: saving session: %w", err)
	}

	for seat, p := range rec.Players {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO players (session_id, seat, id, name, role, controller, controller_name) VALUES (?, ?, ?, ?, ?, ?, ?)",
			rec.SessionID, seat, p.ID, p.Name, string(p.Role), string(p.Controller), p.ControllerName,
		)
		if err != nil {
			return fmt.Errorf("archive: saving player %s: %w", p.Name, err)
		}
		for _, m := range p.Messages {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO messages (session_id, player_id, seq, role, content, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
				rec.SessionID, p.ID, m.Index, string(m.Role), m.Content, m.Time,
			)
			if err != nil {
				return fmt.Errorf("archive: saving message: %w", err)
			}
		}
	}

	for _, v := range rec.Votes {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO votes (session_id, voter, accused) VALUES (?, ?, ?)",
			rec.SessionID, v.Voter, v.Accused,
		)
		if err != nil {
			return fmt.Errorf("archive: saving vote: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	s.logger.Info("session archived", "session_id", rec.SessionID, "players", len(rec.Players), "winner", string(rec.Winner))
	return nil
}

// ListSessions returns the most recent sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, finished_at, animal, chameleon, winner, vote_rule, players FROM sessions ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		var winner string
		if err := rows.Scan(&ss.ID, &ss.StartedAt, &ss.FinishedAt, &ss.Animal, &ss.Chameleon, &winner, &ss.VoteRule, &ss.Players); err != nil {
			return nil, fmt.Errorf("archive: scanning session: %w", err)
		}
		ss.Winner = game.Winner(winner)
		out = append(out, ss)
	}
	return out, rows.Err()
}

// Votes returns the votes of a session in the order they were cast.
func (s *Store) Votes(ctx context.Context, sessionID string) ([]game.Vote, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT voter, accused FROM votes WHERE session_id = ? ORDER BY rowid", sessionID)
	if err != nil {
		return nil, fmt.Errorf("archive: loading votes: %w", err)
	}
	defer rows.Close()

	var out []game.Vote
	for rows.Next() {
		var v game.Vote
		if err := rows.Scan(&v.Voter, &v.Accused); err != nil {
			return nil, fmt.Errorf("archive: scanning vote: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MessageCount returns how many transcript messages were stored for a
// session.
func (s *Store) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("archive: counting messages: %w", err)
	}
	return n, nil
}
