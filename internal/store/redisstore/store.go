package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wildplay/arcade/internal/domain"
	"github.com/wildplay/arcade/internal/store"
)

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
}

// Store keeps one sorted set per game as the ranking index (member = record
// id, score = score value) and one hash per game holding the record bodies.
// Ties within equal scores order lexically by id, which keeps tie-breaking
// deterministic per query.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func New(c Config) *Store {
	return &Store{
		redis:  c.Redis,
		prefix: c.Prefix,
	}
}

// record is the hash field payload. The id lives only in the key side.
type record struct {
	PlayerName string  `json:"playerName"`
	Score      float64 `json:"score"`
	Timestamp  int64   `json:"timestamp"`
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

	body, err := json.Marshal(record{
		PlayerName: r.PlayerName,
		Score:      r.Score,
		Timestamp:  r.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	// The index entry and the body are written atomically so a concurrent
	// query never sees a half-written record.
	_, err = s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, s.scoresKey(game), redis.Z{Score: r.Score, Member: r.ID})
		p.HSet(ctx, s.recordsKey(game), r.ID, body)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}

	return r.ID, nil
}

func (s *Store) List(ctx context.Context, game domain.Game) ([]domain.ScoreRecord, error) {
	all, err := s.redis.HGetAll(ctx, s.recordsKey(game)).Result()
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	records := make([]domain.ScoreRecord, 0, len(all))
	for id, body := range all {
		r, err := unmarshalRecord(id, body)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, nil
}

func (s *Store) Query(ctx context.Context, game domain.Game, dir store.Direction, limit int) ([]domain.ScoreRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	var (
		ids []string
		err error
	)
	if dir == store.Asc {
		ids, err = s.redis.ZRange(ctx, s.scoresKey(game), 0, stop).Result()
	} else {
		ids, err = s.redis.ZRevRange(ctx, s.scoresKey(game), 0, stop).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("query score index: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	bodies, err := s.redis.HMGet(ctx, s.recordsKey(game), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("query record bodies: %w", err)
	}

	records := make([]domain.ScoreRecord, 0, len(ids))
	for i, body := range bodies {
		b, ok := body.(string)
		if !ok {
			// Record deleted between the index read and the body read.
			continue
		}

		r, err := unmarshalRecord(ids[i], b)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, nil
}

func (s *Store) Delete(ctx context.Context, game domain.Game, id string) error {
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, s.scoresKey(game), id)
		p.HDel(ctx, s.recordsKey(game), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	return nil
}

func unmarshalRecord(id, body string) (domain.ScoreRecord, error) {
	var r record
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("unmarshal record %s: %w", id, err)
	}

	return domain.ScoreRecord{
		ID:         id,
		PlayerName: r.PlayerName,
		Score:      r.Score,
		Timestamp:  r.Timestamp,
	}, nil
}

func (s *Store) scoresKey(game domain.Game) string {
	return fmt.Sprintf("%s:%s:scores", s.prefix, game)
}

func (s *Store) recordsKey(game domain.Game) string {
	return fmt.Sprintf("%s:%s:records", s.prefix, game)
}
