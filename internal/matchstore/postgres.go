package matchstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/park285/Cheese-Damas/internal/checkers"
)

const schema = `
CREATE TABLE IF NOT EXISTS damas_matches (
	match_id      TEXT PRIMARY KEY,
	red_player    TEXT NOT NULL,
	blue_player   TEXT NOT NULL,
	red_pieces    INTEGER NOT NULL,
	blue_pieces   INTEGER NOT NULL,
	winner        TEXT NOT NULL,
	winner_name   TEXT NOT NULL,
	reason        TEXT NOT NULL,
	moves         INTEGER NOT NULL,
	red_captures  INTEGER NOT NULL,
	blue_captures INTEGER NOT NULL,
	final_board   TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS damas_matches_red_idx ON damas_matches (red_player, ended_at DESC);
CREATE INDEX IF NOT EXISTS damas_matches_blue_idx ON damas_matches (blue_player, ended_at DESC);`

const selectColumns = `match_id, red_player, blue_player, red_pieces, blue_pieces,
	winner, winner_name, reason, moves, red_captures, blue_captures,
	final_board, started_at, ended_at, duration_ms`

// Postgres persists records in the damas_matches table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// NewPostgresWithDB wraps an open handle.
func NewPostgresWithDB(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Postgres) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Postgres) Record(ctx context.Context, rec checkers.MatchRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	const q = `INSERT INTO damas_matches (
		match_id, red_player, blue_player, red_pieces, blue_pieces,
		winner, winner_name, reason, moves, red_captures, blue_captures,
		final_board, started_at, ended_at, duration_ms
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.RedPlayer, rec.BluePlayer, rec.RedPieces, rec.BluePieces,
		string(rec.Winner), rec.WinnerName, string(rec.Reason), rec.Moves, rec.RedCaptures, rec.BlueCaptures,
		encodeBoard(rec.FinalBoard), rec.StartedAt, rec.EndedAt, rec.Duration.Milliseconds(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateMatch
	}
	return err
}

func (s *Postgres) Get(ctx context.Context, id string) (*checkers.MatchRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM damas_matches WHERE match_id = $1`, strings.TrimSpace(id))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Postgres) Recent(ctx context.Context, player string, limit int) ([]checkers.MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM damas_matches
		WHERE red_player = $1 OR blue_player = $1
		ORDER BY ended_at DESC LIMIT $2`, strings.TrimSpace(player), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]checkers.MatchRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*checkers.MatchRecord, error) {
	var (
		rec                   checkers.MatchRecord
		winner, reason, board string
		durationMS            int64
	)
	err := row.Scan(&rec.ID, &rec.RedPlayer, &rec.BluePlayer, &rec.RedPieces, &rec.BluePieces,
		&winner, &rec.WinnerName, &reason, &rec.Moves, &rec.RedCaptures, &rec.BlueCaptures,
		&board, &rec.StartedAt, &rec.EndedAt, &durationMS)
	if err != nil {
		return nil, err
	}
	rec.Winner = checkers.Color(winner)
	rec.Reason = checkers.EndReason(reason)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	if rec.FinalBoard, err = checkers.ParseBoard(board); err != nil {
		return nil, fmt.Errorf("decode board of %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func encodeBoard(b checkers.Board) string {
	return strings.ReplaceAll(b.String(), "\n", "/")
}

// isUniqueViolation reports a primary key clash (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
