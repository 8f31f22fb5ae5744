package api

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/wildplay/arcade/internal/domain"
	"github.com/wildplay/arcade/internal/errors"
	"github.com/wildplay/arcade/internal/event"
	"github.com/wildplay/arcade/internal/leaderboard"
	"github.com/wildplay/arcade/internal/quote"
)

type Config struct {
	Engine       *gin.Engine
	EventBus     *event.Bus
	Leaderboard  *leaderboard.Service
	Quote        *quote.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	ls *leaderboard.Service
	qs *quote.Service

	redis  Redis
	prefix string
}

// New registers the HTTP routes on the engine. The route table is the whole
// public surface: anything else is a 404, a known path with the wrong method
// is a 405.
func New(c Config) *API {
	a := &API{
		ls:     c.Leaderboard,
		qs:     c.Quote,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	e := c.Engine
	e.HandleMethodNotAllowed = true
	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	e.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	g := e.Group("/api")
	g.POST("/generate-quote", a.GenerateQuote)
	g.POST("/generate", a.GenerateQuote)
	g.POST("/leaderboard/submit", a.SubmitScore)
	g.GET("/leaderboard/all", a.GetChampions)
	g.GET("/leaderboard/:game", a.GetLeaderboard)

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameScoreSubmitted, func(ctx context.Context, e event.Event) error {
			return a.PublishScoreSubmitted(ctx, e.(domain.EventScoreSubmitted))
		})
	}

	return a
}

type submitScoreRequest struct {
	Game       string   `json:"game"`
	PlayerName string   `json:"playerName"`
	Score      *float64 `json:"score"`
}

func (a *API) SubmitScore(c *gin.Context) {
	var req submitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	resp, err := a.ls.SubmitScore(c.Request.Context(), leaderboard.SubmitScoreRequest{
		Game:       req.Game,
		PlayerName: req.PlayerName,
		Score:      req.Score,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"qualified": resp.Qualified,
	})
}

type leaderboardEntry struct {
	PlayerName string  `json:"playerName"`
	Score      float64 `json:"score"`
	Timestamp  int64   `json:"timestamp"`
}

func (a *API) GetLeaderboard(c *gin.Context) {
	req := leaderboard.GetLeaderboardRequest{
		Game: c.Param("game"),
	}

	// A since value that is not a finite number is ignored, not rejected.
	if raw := c.Query("since"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			req.Since = &v
		}
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), req)
	if err != nil {
		renderError(c, err)
		return
	}

	entries := make([]leaderboardEntry, 0, len(l.Entries))
	for _, r := range l.Entries {
		entries = append(entries, leaderboardEntry{
			PlayerName: r.PlayerName,
			Score:      r.Score,
			Timestamp:  r.Timestamp,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"leaderboard": entries,
	})
}

func (a *API) GetChampions(c *gin.Context) {
	champions, err := a.ls.GetChampions(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	resp := make(map[string]leaderboardEntry, len(champions))
	for g, r := range champions {
		resp[string(g)] = leaderboardEntry{
			PlayerName: r.PlayerName,
			Score:      r.Score,
			Timestamp:  r.Timestamp,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"champions": resp,
	})
}

type generateQuoteRequest struct {
	Prompt  string `json:"prompt"`
	Animal  string `json:"animal"`
	Context string `json:"context"`
}

func (a *API) GenerateQuote(c *gin.Context) {
	var req generateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	resp, err := a.qs.Generate(c.Request.Context(), quote.GenerateRequest{
		Prompt:  req.Prompt,
		Animal:  req.Animal,
		Context: req.Context,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"quote":   resp.Quote,
	})
}

// renderError maps a service error to the JSON error envelope: client errors
// carry the validation message, server errors carry a generic message plus
// the cause text for diagnostics.
func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)

	status := e.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		msg := e.Message
		if cause := e.Unwrap(); cause != nil {
			msg = cause.Error()
		}

		c.JSON(status, gin.H{
			"error":   "Internal server error",
			"message": msg,
		})
		return
	}

	c.JSON(status, gin.H{"error": e.Message})
}
