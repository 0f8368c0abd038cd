package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/config"
	"github.com/cuongbtq/itinerary-be/internal/storage/firestore"
	"github.com/cuongbtq/itinerary-be/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestResources_CloseInReverseOrder(t *testing.T) {
	res := NewResources(discardLogger())

	var closed []string
	res.add("postgres", closerFunc(func() error {
		closed = append(closed, "postgres")
		return nil
	}), nil)
	res.add("rabbitmq", closerFunc(func() error {
		closed = append(closed, "rabbitmq")
		return errors.New("already closed")
	}), nil)

	res.Close()
	assert.Equal(t, []string{"rabbitmq", "postgres"}, closed)

	// A second Close is a no-op
	res.Close()
	assert.Len(t, closed, 2)
}

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		check   func(t *testing.T, store any)
		wantErr string
	}{
		{
			name: "memory",
			cfg:  config.Config{Store: config.StoreConfig{Backend: config.StoreMemory}},
			check: func(t *testing.T, store any) {
				assert.IsType(t, &memory.Store{}, store)
			},
		},
		{
			name: "firestore",
			cfg: config.Config{
				Store: config.StoreConfig{Backend: config.StoreFirestore},
				Firestore: config.FirestoreConfig{
					ProjectID:  "demo",
					Collection: "itineraries",
					Auth:       config.FirebaseAuth{APIKey: "key", Email: "a@b.c", Password: "pw"},
				},
			},
			check: func(t *testing.T, store any) {
				assert.IsType(t, &firestore.Store{}, store)
			},
		},
		{
			name: "firestore without credentials",
			cfg: config.Config{
				Store:     config.StoreConfig{Backend: config.StoreFirestore},
				Firestore: config.FirestoreConfig{ProjectID: "demo", Collection: "itineraries"},
			},
			wantErr: "failed to create firebase token source",
		},
		{
			name:    "unknown backend",
			cfg:     config.Config{Store: config.StoreConfig{Backend: "mongo"}},
			wantErr: `invalid store backend "mongo"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResources(discardLogger())
			defer res.Close()

			store, err := OpenStore(context.Background(), &tt.cfg, discardLogger(), res)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, store)
			assert.Empty(t, res.Checks())
		})
	}
}

func TestNewOrchestrator(t *testing.T) {
	cfg := config.Config{}
	cfg.ApplyDefaults()
	cfg.Completion.APIKey = "sk-test"
	cfg.Job.AttemptTimeout = 10 * time.Second

	orch, err := NewOrchestrator(&cfg, memory.NewStore(), discardLogger())
	require.NoError(t, err)

	// 3 attempts of 10s plus 1s and 2s of backoff
	assert.Equal(t, 33*time.Second, orch.MaxDuration())

	cfg.Completion.ResponsePath = "choices[["
	_, err = NewOrchestrator(&cfg, memory.NewStore(), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create completion client")
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, log.Logger)
	assert.NoError(t, log.Close())
}
