package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wildplay/arcade/internal/domain"
	"github.com/wildplay/arcade/internal/store"
)

type Config struct {
	DB *pgxpool.Pool
}

// Store persists records in the scores table, one row per record. The score
// column is NUMERIC so fractional scores survive the round trip exactly.
// Ties within equal scores order by id, which keeps tie-breaking
// deterministic per query.
type Store struct {
	db *pgxpool.Pool
}

func New(c Config) *Store {
	return &Store{db: c.DB}
}

func (s *Store) Insert(ctx context.Context, game domain.Game, r domain.ScoreRecord) (string, error) {
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate record ID: %w", err)
		}
		r.ID = id.String()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}

	const stmt = `
INSERT INTO scores (game, id, player_name, score, created_ms)
VALUES ($1, $2, $3, $4, $5);`

	_, err := s.db.Exec(ctx, stmt, game, r.ID, r.PlayerName, decimal.NewFromFloat(r.Score), r.Timestamp)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}

	return r.ID, nil
}

func (s *Store) List(ctx context.Context, game domain.Game) ([]domain.ScoreRecord, error) {
	const stmt = `
SELECT id, player_name, score, created_ms
FROM scores
WHERE game = $1;`

	rows, err := s.db.Query(ctx, stmt, game)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	return collectRecords(rows)
}

func (s *Store) Query(ctx context.Context, game domain.Game, dir store.Direction, limit int) ([]domain.ScoreRecord, error) {
	stmt := `
SELECT id, player_name, score, created_ms
FROM scores
WHERE game = $1
ORDER BY score ASC, id ASC`
	if dir == store.Desc {
		stmt = `
SELECT id, player_name, score, created_ms
FROM scores
WHERE game = $1
ORDER BY score DESC, id ASC`
	}

	args := []any{game}
	if limit > 0 {
		stmt += `
LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, stmt+";", args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	return collectRecords(rows)
}

func (s *Store) Delete(ctx context.Context, game domain.Game, id string) error {
	const stmt = `DELETE FROM scores WHERE game = $1 AND id = $2;`

	// An absent row is a no-op: concurrent cleanup passes may race.
	if _, err := s.db.Exec(ctx, stmt, game, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	return nil
}

func collectRecords(rows pgx.Rows) ([]domain.ScoreRecord, error) {
	records, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.ScoreRecord, error) {
		var (
			rec   domain.ScoreRecord
			score decimal.Decimal
		)
		if err := r.Scan(&rec.ID, &rec.PlayerName, &score, &rec.Timestamp); err != nil {
			return domain.ScoreRecord{}, err
		}
		rec.Score = score.InexactFloat64()
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	return records, nil
}
