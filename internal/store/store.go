package store

import (
	"context"

	"github.com/wildplay/arcade/internal/domain"
)

// Direction is the sort order applied to scores in Query.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Store is the per-game score storage backing the leaderboard service.
// Implementations must be safe for concurrent insert, query and delete on
// the same game.
type Store interface {
	// Insert persists one record for game. A zero ID or Timestamp is
	// assigned by the store (ID a fresh UUID, Timestamp the current time in
	// epoch milliseconds). Returns the stored record's id.
	Insert(ctx context.Context, game domain.Game, r domain.ScoreRecord) (string, error)

	// List returns every record stored for game, in no particular order.
	List(ctx context.Context, game domain.Game) ([]domain.ScoreRecord, error)

	// Query returns records for game ordered by score in dir. At most limit
	// records are returned; limit <= 0 means no limit. Ties within equal
	// scores are ordered deterministically by the backing index.
	Query(ctx context.Context, game domain.Game, dir Direction, limit int) ([]domain.ScoreRecord, error)

	// Delete removes one record by id. Deleting an absent id is a no-op,
	// not an error: concurrent cleanup passes may race on the same record.
	Delete(ctx context.Context, game domain.Game, id string) error
}
