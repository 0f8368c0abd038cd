package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/cuongbtq/itinerary-be/internal/completion"
	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"github.com/cuongbtq/itinerary-be/internal/storage/memory"
)

const validItinerary = `[{"day":1,"theme":"Old Town","activities":[{"time":"09:00","description":"Tram 28","location":"Alfama"}]}]`

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingStore is a memory store that records every write and can fail
// selected ones
type recordingStore struct {
	*memory.Store

	mu         sync.Mutex
	creates    int
	updates    []itinerary.Patch
	createErr  error
	updateErrs map[int]error // keyed by zero-based update call
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.NewStore(), updateErrs: make(map[int]error)}
}

func (s *recordingStore) Create(ctx context.Context, rec itinerary.Record) (string, error) {
	s.mu.Lock()
	s.creates++
	err := s.createErr
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	return s.Store.Create(ctx, rec)
}

func (s *recordingStore) Update(ctx context.Context, id string, patch itinerary.Patch) error {
	s.mu.Lock()
	idx := len(s.updates)
	s.updates = append(s.updates, patch)
	err := s.updateErrs[idx]
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return s.Store.Update(ctx, id, patch)
}

func (s *recordingStore) writes() []itinerary.Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]itinerary.Patch(nil), s.updates...)
}

func (s *recordingStore) createCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// seed stores a processing record and returns its job
func (s *recordingStore) seed(destination string, days int) itinerary.Job {
	rec := itinerary.NewRecord(destination, days, fixedNow)
	id, err := s.Store.Create(context.Background(), rec)
	if err != nil {
		panic(err)
	}
	rec.ID = id
	return rec.Job()
}

// completerResult is one scripted provider answer
type completerResult struct {
	text string
	err  error
}

// scriptedCompleter returns its results in order, repeating the last one
type scriptedCompleter struct {
	mu      sync.Mutex
	results []completerResult
	calls   int
	prompts []string
}

func (c *scriptedCompleter) Complete(ctx context.Context, prompt string, _ completion.Params) (*completion.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prompts = append(c.prompts, prompt)
	idx := min(c.calls, len(c.results)-1)
	c.calls++

	res := c.results[idx]
	if res.err != nil {
		return nil, res.err
	}
	return &completion.Response{Choices: []completion.Choice{{Text: res.text}}}, nil
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// runnerFunc adapts a function to Runner
type runnerFunc func(ctx context.Context, job itinerary.Job) error

func (f runnerFunc) Run(ctx context.Context, job itinerary.Job) error {
	return f(ctx, job)
}

// launcherFunc adapts a function to Launcher
type launcherFunc func(ctx context.Context, job itinerary.Job) error

func (f launcherFunc) Launch(ctx context.Context, job itinerary.Job) error {
	return f(ctx, job)
}
