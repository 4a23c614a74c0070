package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
)

func TestFinBERTClient_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/score", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Rates are rising.", req.Text)

		_ = json.NewEncoder(w).Encode(scoreResponse{Positive: 0.1, Neutral: 0.2, Negative: 0.7})
	}))
	defer srv.Close()

	client := NewFinBERTClient(srv.URL)
	probs, err := client.Score(context.Background(), "Rates are rising.")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, probs.Negative, 1e-12)
	assert.Equal(t, domain.LabelNegative, probs.Label())
}

func TestFinBERTClient_ScoreRejectsInvalidProbabilities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(scoreResponse{Positive: 0.9, Neutral: 0.9, Negative: 0.9})
	}))
	defer srv.Close()

	client := NewFinBERTClient(srv.URL)
	_, err := client.Score(context.Background(), "text")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrScorerUnavailable)
}

func TestFinBERTClient_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewFinBERTClient(srv.URL)
	_, err := client.Score(context.Background(), "text")
	assert.ErrorIs(t, err, domain.ErrScorerUnavailable)
}

func TestFinBERTClient_TransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewFinBERTClient(srv.URL)
	_, err := client.Score(context.Background(), "text")
	assert.ErrorIs(t, err, domain.ErrScorerUnavailable)
}

func TestFinBERTClient_BadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewFinBERTClient(srv.URL)
	_, err := client.Score(context.Background(), "text")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrScorerUnavailable)
}

func TestFinBERTClient_CountTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tokenize", r.URL.Path)
		_ = json.NewEncoder(w).Encode(tokenizeResponse{TokenCount: 17})
	}))
	defer srv.Close()

	client := NewFinBERTClient(srv.URL)
	count, err := client.CountTokens(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, 17, count)
}
