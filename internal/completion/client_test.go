package completion

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, responsePath string) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{
		Endpoint:     srv.URL,
		APIKey:       "test-key",
		ResponsePath: responsePath,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return client
}

func TestClient_Complete(t *testing.T) {
	var received chatRequest
	var auth string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[{\"day\":1}]"}}]}`))
	}, "")

	resp, err := client.Complete(context.Background(), "plan a trip", Params{
		Model:       "gpt-4o",
		Temperature: 0.7,
		MaxTokens:   500,
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, `[{"day":1}]`, resp.Choices[0].Text)

	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "gpt-4o", received.Model)
	assert.Equal(t, 0.7, received.Temperature)
	assert.Equal(t, 500, received.MaxTokens)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "user", received.Messages[0].Role)
	assert.Equal(t, "plan a trip", received.Messages[0].Content)
}

func TestClient_Complete_CustomResponsePath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":{"text":"hello"}}`))
	}, "output.text")

	resp, err := client.Complete(context.Background(), "hi", Params{Model: "m"})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello", resp.Choices[0].Text)
}

func TestClient_Complete_NoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}, "")

	resp, err := client.Complete(context.Background(), "hi", Params{Model: "m"})
	require.NoError(t, err)
	assert.Empty(t, resp.Choices)
}

func TestClient_Complete_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"boom"}`))
			},
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler, "")

			resp, err := client.Complete(context.Background(), "hi", Params{Model: "m"})
			require.Error(t, err)
			assert.ErrorIs(t, err, itinerary.ErrProvider)
			assert.Nil(t, resp)
		})
	}
}

func TestClient_Complete_CanceledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, "hi", Params{Model: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, itinerary.ErrProvider)
}

func TestNewClient_InvalidResponsePath(t *testing.T) {
	_, err := NewClient(&Config{ResponsePath: "choices[*"}, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid response path")
}
