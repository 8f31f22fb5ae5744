package quote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wildplay/arcade/internal/errors"
	"github.com/wildplay/arcade/internal/quote"
)

func TestService_Generate(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Swim on, little fish.  "}}]}`))
	}))
	t.Cleanup(upstream.Close)

	s := makeService(upstream)

	resp, err := s.Generate(context.Background(), quote.GenerateRequest{
		Animal:  "shark",
		Context: "scored 5000 points",
	})
	require.NoError(t, err)
	require.Equal(t, "Swim on, little fish.", resp.Quote)

	require.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Contains(t, got.Messages[1].Content, "shark")
	require.Contains(t, got.Messages[1].Content, "scored 5000 points")
}

func TestService_Generate_PromptWinsOverAnimal(t *testing.T) {
	var userPrompt string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		userPrompt = req.Messages[1].Content

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	t.Cleanup(upstream.Close)

	s := makeService(upstream)

	_, err := s.Generate(context.Background(), quote.GenerateRequest{
		Prompt: "say something about turtles",
		Animal: "shark",
	})
	require.NoError(t, err)
	require.Equal(t, "say something about turtles", userPrompt)
}

func TestService_Generate_MissingPromptAndAnimal(t *testing.T) {
	s := quote.NewService(quote.Config{URL: "http://unused"})

	_, err := s.Generate(context.Background(), quote.GenerateRequest{Context: "won"})
	require.Error(t, err)
	require.Equal(t, errors.CodeInvalidArgument, errors.Convert(err).Code)
}

func TestService_Generate_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(upstream.Close)

	s := makeService(upstream)

	_, err := s.Generate(context.Background(), quote.GenerateRequest{Animal: "whale"})
	require.Error(t, err)
	require.Equal(t, errors.CodeInternal, errors.Convert(err).Code)
}

func TestService_Generate_ConfiguredTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	}))
	t.Cleanup(upstream.Close)

	s := quote.NewService(quote.Config{
		URL:     upstream.URL,
		Timeout: 20 * time.Millisecond,
	})

	_, err := s.Generate(context.Background(), quote.GenerateRequest{Animal: "whale"})
	require.Error(t, err, "an upstream slower than the configured timeout should fail")
	require.Equal(t, errors.CodeInternal, errors.Convert(err).Code)
}

func TestService_Generate_EmptyCompletionFallsBack(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
	}))
	t.Cleanup(upstream.Close)

	s := makeService(upstream)

	resp, err := s.Generate(context.Background(), quote.GenerateRequest{Animal: "manta"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Quote, "an empty completion should fall back to a canned quote")
}

func makeService(upstream *httptest.Server) *quote.Service {
	return quote.NewService(quote.Config{
		HTTPClient: upstream.Client(),
		URL:        upstream.URL,
		APIKey:     "test-key",
		Model:      "test-model",
	})
}
