package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wildplay/arcade/internal/domain"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	ScoreSubmitted struct {
		Game       string  `json:"game"`
		PlayerName string  `json:"playerName"`
		Score      float64 `json:"score"`
		Qualified  bool    `json:"qualified"`
	}
)

// PublishScoreSubmitted pushes a notification to the game's pub/sub channel
// so open game clients can refresh their boards. Failures are the caller's
// (the event bus) to log; the submitter never sees them.
func (a *API) PublishScoreSubmitted(ctx context.Context, e domain.EventScoreSubmitted) error {
	if a.redis == nil {
		return nil
	}

	n := Notification{
		Event: e.Name(),
		Data: ScoreSubmitted{
			Game:       string(e.Game),
			PlayerName: e.Record.PlayerName,
			Score:      e.Record.Score,
			Qualified:  e.Qualified,
		},
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", e.Name(), err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:game:%s", a.prefix, e.Game), b).Err()
}
