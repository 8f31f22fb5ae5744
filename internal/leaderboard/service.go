package leaderboard

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/wildplay/arcade/internal/domain"
	"github.com/wildplay/arcade/internal/errors"
	"github.com/wildplay/arcade/internal/event"
	"github.com/wildplay/arcade/internal/store"
)

const (
	// TopSize is the number of entries a game's leaderboard exposes, and
	// the size of the set protected from retention cleanup.
	TopSize = 10

	// RetentionWindow is how long a record outside the all-time top is
	// kept. Records both older than the window and outside the top are
	// deleted by the cleanup pass following a submission.
	RetentionWindow = 30 * 24 * time.Hour

	maxNameLen    = 20
	maxConcurrent = 16
)

type Config struct {
	EventBus *event.Bus
	Store    store.Store
	// NowFunc overrides the clock used for the retention cutoff.
	NowFunc func() time.Time
}

type Service struct {
	eb    *event.Bus
	store store.Store
	now   func() time.Time
}

func NewService(c Config) *Service {
	if c.NowFunc == nil {
		c.NowFunc = time.Now
	}

	return &Service{
		eb:    c.EventBus,
		store: c.Store,
		now:   c.NowFunc,
	}
}

type SubmitScoreRequest struct {
	Game       string
	PlayerName string
	// Score is a pointer so a missing score can be told apart from zero.
	Score *float64
}

type SubmitScoreResponse struct {
	// Qualified reports whether the submitted score made the all-time
	// top 10 of its game.
	Qualified bool
}

// SubmitScore validates and stores one score. Every valid submission is
// stored regardless of rank; the response only reports whether it qualified
// for the top 10. The retention cleanup for the game runs before returning.
func (s *Service) SubmitScore(ctx context.Context, req SubmitScoreRequest) (*SubmitScoreResponse, error) {
	g, name, sc, err := validate(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Insert(ctx, g, domain.ScoreRecord{
		PlayerName: name,
		Score:      sc,
	}); err != nil {
		return nil, fmt.Errorf("submit score: %w", err)
	}

	// One post-insert snapshot serves both qualification and the protected
	// set for cleanup.
	top, err := s.store.Query(ctx, g, directionFor(g), TopSize)
	if err != nil {
		return nil, fmt.Errorf("submit score: query top: %w", err)
	}

	qualified := false
	for _, r := range top {
		if r.PlayerName == name && r.Score == sc {
			qualified = true
			break
		}
	}

	if err := s.cleanup(ctx, g, top); err != nil {
		return nil, fmt.Errorf("submit score: cleanup: %w", err)
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventScoreSubmitted{
			Game:      g,
			Record:    domain.ScoreRecord{PlayerName: name, Score: sc},
			Qualified: qualified,
		})
	}

	return &SubmitScoreResponse{Qualified: qualified}, nil
}

// validate checks the submission rules in order, first failure wins.
func validate(req SubmitScoreRequest) (domain.Game, string, float64, error) {
	if req.Game == "" || req.PlayerName == "" || req.Score == nil {
		return "", "", 0, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("game, playerName and score are required"))
	}

	g := domain.Game(req.Game)
	if !g.Valid() {
		return "", "", 0, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid game: %q", req.Game))
	}

	// The bound counts characters, not bytes: multibyte names are fine.
	name := strings.TrimSpace(req.PlayerName)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return "", "", 0, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("playerName must be 1-%d characters", maxNameLen))
	}

	sc := *req.Score
	if math.IsNaN(sc) || math.IsInf(sc, 0) {
		return "", "", 0, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("score must be a finite number"))
	}

	return g, name, sc, nil
}

// cleanup deletes every record that is both outside the protected top set
// and older than the retention window. Deletions run concurrently; the pass
// waits for all of them to settle. A record in the top is never deleted
// regardless of age, and a record inside the window is never deleted
// regardless of rank.
func (s *Service) cleanup(ctx context.Context, g domain.Game, top []domain.ScoreRecord) error {
	protected := make(map[string]struct{}, len(top))
	for _, r := range top {
		protected[r.ID] = struct{}{}
	}

	cutoff := s.now().Add(-RetentionWindow).UnixMilli()

	all, err := s.store.List(ctx, g)
	if err != nil {
		return err
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, r := range all {
		if _, ok := protected[r.ID]; ok {
			continue
		}
		if r.Timestamp >= cutoff {
			continue
		}

		id := r.ID
		eg.Go(func() error {
			return s.store.Delete(ctx, g, id)
		})
	}

	return eg.Wait()
}

type GetLeaderboardRequest struct {
	Game string
	// Since, when set, drops records older than the given epoch
	// milliseconds before ranking is truncated.
	Since *float64
}

// GetLeaderboard ranks the game's entire stored history by score, applies
// the optional time filter, and returns the first TopSize records.
// Retention cleanup is what keeps "entire history" bounded in practice.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	g := domain.Game(req.Game)
	if !g.Valid() {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid game: %q", req.Game))
	}

	all, err := s.store.Query(ctx, g, directionFor(g), 0)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]domain.ScoreRecord, 0, TopSize)
	for _, r := range all {
		if req.Since != nil && float64(r.Timestamp) < *req.Since {
			continue
		}
		entries = append(entries, r)
		if len(entries) == TopSize {
			break
		}
	}

	return &domain.Leaderboard{
		Game:    g,
		Entries: entries,
	}, nil
}

// GetChampions fetches the single best record of every game concurrently and
// returns a map keyed by game. Games with no records are omitted. Any single
// failed fetch fails the whole call.
func (s *Service) GetChampions(ctx context.Context) (map[domain.Game]domain.ScoreRecord, error) {
	var (
		mu        sync.Mutex
		champions = make(map[domain.Game]domain.ScoreRecord)
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrent)

	for g := range domain.Games {
		g := g
		eg.Go(func() error {
			res, err := s.store.Query(ctx, g, directionFor(g), 1)
			if err != nil {
				return fmt.Errorf("champion for %s: %w", g, err)
			}

			if len(res) == 0 {
				return nil
			}

			mu.Lock()
			champions[g] = res[0]
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return champions, nil
}

func directionFor(g domain.Game) store.Direction {
	if domain.Games[g].LowerIsBetter {
		return store.Asc
	}

	return store.Desc
}
