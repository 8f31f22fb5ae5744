//go:build integration_test

package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/wildplay/arcade/internal/domain"
)

const baseURL = "http://localhost:8080"

// TestArcade drives a running server: concurrent submissions to one game,
// then checks the ranked leaderboard and the champions aggregation, while a
// pub/sub subscriber watches for score notifications.
func TestArcade(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wg := new(sync.WaitGroup)
	subscribeToGame(t, makeRedis(t), wg, "shark")

	var eg errgroup.Group
	for i := 0; i < 15; i++ {
		i := i
		eg.Go(func() error {
			qualified, err := submit(ctx, "shark", fmt.Sprintf("p%d", i), float64(i*100))
			if err != nil {
				return fmt.Errorf("player p%d: %w", i, err)
			}

			t.Logf("p%d submitted: qualified=%v", i, qualified)
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	{
		resp, err := http.Get(baseURL + "/api/leaderboard/shark")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body struct {
			Success     bool `json:"success"`
			Leaderboard []struct {
				PlayerName string  `json:"playerName"`
				Score      float64 `json:"score"`
			} `json:"leaderboard"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.True(t, body.Success)
		require.Len(t, body.Leaderboard, 10)
		require.Equal(t, float64(1400), body.Leaderboard[0].Score)
	}

	{
		resp, err := http.Get(baseURL + "/api/leaderboard/all")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body struct {
			Success   bool                       `json:"success"`
			Champions map[string]json.RawMessage `json:"champions"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.True(t, body.Success)
		require.Contains(t, body.Champions, "shark")
	}

	wg.Wait()
}

func submit(ctx context.Context, game, player string, score float64) (bool, error) {
	b, _ := json.Marshal(map[string]any{
		"game":       game,
		"playerName": player,
		"score":      score,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/leaderboard/submit", bytes.NewReader(b))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}

	var body struct {
		Success   bool `json:"success"`
		Qualified bool `json:"qualified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}

	return body.Qualified, nil
}

func subscribeToGame(t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, game string) {
	wg.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	sub := rc.PSubscribe(ctx, fmt.Sprintf("local:pubsub:game:%s", game))
	t.Cleanup(func() {
		cancel()
		sub.Close()
	})

	go func() {
		defer wg.Done()

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				return
			}

			var n struct {
				Event string `json:"event"`
				Data  struct {
					PlayerName string  `json:"playerName"`
					Score      float64 `json:"score"`
					Qualified  bool    `json:"qualified"`
				} `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			if n.Event == domain.EventNameScoreSubmitted {
				t.Logf("%s scored %.0f (qualified=%v)", n.Data.PlayerName, n.Data.Score, n.Data.Qualified)
				return
			}
		}
	}()
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}
