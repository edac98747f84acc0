// Package storage provides SQLite-based persistence for match results and
// player ratings. Uses the pure-Go modernc.org/sqlite driver to avoid CGO
// dependencies.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
	"github.com/vovakirdan/paddle-arena/internal/rating"
)

const timeLayout = "2006-01-02 15:04:05"

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

var (
	_ multiplayer.ResultStore   = (*Store)(nil)
	_ multiplayer.RatingService = (*Store)(nil)
)

// MatchEntry is one persisted match.
type MatchEntry struct {
	ID           int64
	RoomCode     string
	Players      [2]string
	Wallets      [2]string
	Score        [2]int
	Winner       string
	Loser        string
	Reason       string
	IsStaked     bool
	StakeAmount  int64
	Duration     time.Duration
	Hits         int
	WinSignature string
	EndedAt      time.Time
}

// RatingEntry is a player's current rating and record.
type RatingEntry struct {
	Player    string
	Rating    int
	Wins      int
	Losses    int
	UpdatedAt time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// SQLite allows one writer; settlement goroutines share this handle.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_code TEXT NOT NULL,
			player1 TEXT NOT NULL,
			player2 TEXT NOT NULL,
			wallet1 TEXT NOT NULL DEFAULT '',
			wallet2 TEXT NOT NULL DEFAULT '',
			score1 INTEGER NOT NULL DEFAULT 0,
			score2 INTEGER NOT NULL DEFAULT 0,
			winner TEXT NOT NULL,
			loser TEXT NOT NULL,
			end_reason TEXT NOT NULL,
			is_staked INTEGER NOT NULL DEFAULT 0,
			stake_amount INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			hits INTEGER NOT NULL DEFAULT 0,
			win_signature TEXT NOT NULL DEFAULT '',
			ended_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches(player1);
		CREATE INDEX IF NOT EXISTS idx_matches_player2 ON matches(player2);
		CREATE INDEX IF NOT EXISTS idx_matches_ended ON matches(ended_at DESC);

		CREATE TABLE IF NOT EXISTS ratings (
			player TEXT PRIMARY KEY,
			rating INTEGER NOT NULL,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ratings_top ON ratings(rating DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveMatchResult records a finished match.
func (s *Store) SaveMatchResult(ctx context.Context, rec multiplayer.MatchRecord) error {
	endedAt := rec.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches
		 (room_code, player1, player2, wallet1, wallet2, score1, score2, winner, loser,
		  end_reason, is_staked, stake_amount, duration_ms, hits, win_signature, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RoomCode,
		rec.Players[0], rec.Players[1],
		rec.Wallets[0], rec.Wallets[1],
		rec.Score[0], rec.Score[1],
		rec.Winner, rec.Loser,
		string(rec.Reason),
		rec.IsStaked,
		rec.StakeAmount,
		rec.Duration.Milliseconds(),
		rec.Hits,
		rec.WinSignature,
		endedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save match: %w", err)
	}
	return nil
}

// UpdateRatings applies an Elo update for winner beating loser. Players
// without a rating start at rating.Base.
func (s *Store) UpdateRatings(ctx context.Context, winner, loser string) (multiplayer.Ratings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return multiplayer.Ratings{}, fmt.Errorf("storage: cannot begin rating update: %w", err)
	}
	defer tx.Rollback()

	wBefore, err := currentRating(ctx, tx, winner)
	if err != nil {
		return multiplayer.Ratings{}, err
	}
	lBefore, err := currentRating(ctx, tx, loser)
	if err != nil {
		return multiplayer.Ratings{}, err
	}
	wAfter, lAfter := rating.Update(wBefore, lBefore)

	now := time.Now().UTC().Format(timeLayout)
	upsert := `INSERT INTO ratings (player, rating, wins, losses, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(player) DO UPDATE SET
			rating = excluded.rating,
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, winner, wAfter, 1, 0, now); err != nil {
		return multiplayer.Ratings{}, fmt.Errorf("storage: cannot update rating: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, loser, lAfter, 0, 1, now); err != nil {
		return multiplayer.Ratings{}, fmt.Errorf("storage: cannot update rating: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return multiplayer.Ratings{}, fmt.Errorf("storage: cannot commit rating update: %w", err)
	}

	return multiplayer.Ratings{
		Winner: multiplayer.RatingChange{Before: wBefore, After: wAfter},
		Loser:  multiplayer.RatingChange{Before: lBefore, After: lAfter},
	}, nil
}

func currentRating(ctx context.Context, tx *sql.Tx, player string) (int, error) {
	var r int
	err := tx.QueryRowContext(ctx, "SELECT rating FROM ratings WHERE player = ?", player).Scan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return rating.Base, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: cannot query rating: %w", err)
	}
	return r, nil
}

// Rating returns a player's rating entry. Unknown players get rating.Base
// and an empty record.
func (s *Store) Rating(ctx context.Context, player string) (RatingEntry, error) {
	e := RatingEntry{Player: player, Rating: rating.Base}
	var updatedAt any
	err := s.db.QueryRowContext(ctx,
		"SELECT rating, wins, losses, updated_at FROM ratings WHERE player = ?",
		player,
	).Scan(&e.Rating, &e.Wins, &e.Losses, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return e, nil
	}
	if err != nil {
		return RatingEntry{}, fmt.Errorf("storage: cannot query rating: %w", err)
	}
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// TopRatings returns the highest rated players.
func (s *Store) TopRatings(ctx context.Context, limit int) ([]RatingEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT player, rating, wins, losses, updated_at
		 FROM ratings
		 ORDER BY rating DESC, player ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query ratings: %w", err)
	}
	defer rows.Close()

	var entries []RatingEntry
	for rows.Next() {
		var e RatingEntry
		var updatedAt any
		if err := rows.Scan(&e.Player, &e.Rating, &e.Wins, &e.Losses, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		e.UpdatedAt = parseTime(updatedAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return entries, nil
}

const matchColumns = `id, room_code, player1, player2, wallet1, wallet2, score1, score2,
	winner, loser, end_reason, is_staked, stake_amount, duration_ms, hits, win_signature, ended_at`

// RecentMatches retrieves the most recent matches.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]MatchEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryMatches(ctx,
		`SELECT `+matchColumns+`
		 FROM matches
		 ORDER BY ended_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
}

// PlayerHistory retrieves the matches a player took part in, newest first.
func (s *Store) PlayerHistory(ctx context.Context, player string, limit int) ([]MatchEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryMatches(ctx,
		`SELECT `+matchColumns+`
		 FROM matches
		 WHERE player1 = ? OR player2 = ?
		 ORDER BY ended_at DESC, id DESC
		 LIMIT ?`,
		player, player, limit,
	)
}

func (s *Store) queryMatches(ctx context.Context, query string, args ...any) ([]MatchEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query matches: %w", err)
	}
	defer rows.Close()

	var results []MatchEntry
	for rows.Next() {
		var (
			m          MatchEntry
			durationMs int64
			endedAt    any
		)
		if err := rows.Scan(
			&m.ID,
			&m.RoomCode,
			&m.Players[0], &m.Players[1],
			&m.Wallets[0], &m.Wallets[1],
			&m.Score[0], &m.Score[1],
			&m.Winner,
			&m.Loser,
			&m.Reason,
			&m.IsStaked,
			&m.StakeAmount,
			&durationMs,
			&m.Hits,
			&m.WinSignature,
			&endedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		m.Duration = time.Duration(durationMs) * time.Millisecond
		m.EndedAt = parseTime(endedAt)
		results = append(results, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return results, nil
}

// parseTime handles both time.Time and string datetime values.
func parseTime(v any) time.Time {
	switch v := v.(type) {
	case time.Time:
		return v
	case string:
		if parsed, err := time.Parse(timeLayout, v); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
