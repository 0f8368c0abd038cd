package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/completion"
	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLauncher remembers launched jobs
type recordingLauncher struct {
	mu   sync.Mutex
	jobs []itinerary.Job
	err  error
}

func (l *recordingLauncher) Launch(_ context.Context, job itinerary.Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.jobs = append(l.jobs, job)
	return nil
}

func (l *recordingLauncher) launched() []itinerary.Job {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]itinerary.Job(nil), l.jobs...)
}

func TestDispatcher_Submit(t *testing.T) {
	store := newRecordingStore()
	launcher := &recordingLauncher{}
	d := NewDispatcher(store, launcher, testLogger())

	id, err := d.Submit(context.Background(), "  Lisbon ", 3)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, itinerary.StatusProcessing, rec.Status)
	assert.Equal(t, "Lisbon", rec.Destination)
	assert.Equal(t, 3, rec.DurationDays)
	assert.Equal(t, 0, rec.RetryCount)

	jobs := launcher.launched()
	require.Len(t, jobs, 1)
	assert.Equal(t, itinerary.Job{ID: id, Destination: "Lisbon", DurationDays: 3}, jobs[0])
	assert.Empty(t, store.writes(), "submission only creates")
}

func TestDispatcher_SubmitInvalid(t *testing.T) {
	tests := []struct {
		name        string
		destination string
		days        int
		wantField   string
	}{
		{name: "zero duration", destination: "Lisbon", days: 0, wantField: "durationDays"},
		{name: "negative duration", destination: "Lisbon", days: -2, wantField: "durationDays"},
		{name: "blank destination", destination: "   ", days: 2, wantField: "destination"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newRecordingStore()
			launcher := &recordingLauncher{}
			d := NewDispatcher(store, launcher, testLogger())

			id, err := d.Submit(context.Background(), tt.destination, tt.days)
			require.Error(t, err)
			assert.Empty(t, id)

			var validationErr *itinerary.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.wantField, validationErr.Field)

			assert.Zero(t, store.createCalls(), "no record created")
			assert.Empty(t, launcher.launched(), "nothing launched")
		})
	}
}

func TestDispatcher_CreateFailure(t *testing.T) {
	store := newRecordingStore()
	store.createErr = errBoom
	launcher := &recordingLauncher{}
	d := NewDispatcher(store, launcher, testLogger())

	_, err := d.Submit(context.Background(), "Lisbon", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, itinerary.ErrJobCreationFailed)
	assert.Empty(t, launcher.launched())
}

// emptyIDStore acknowledges creation without returning an id
type emptyIDStore struct{ *recordingStore }

func (emptyIDStore) Create(context.Context, itinerary.Record) (string, error) { return "", nil }

func TestDispatcher_CreateReturnsNoID(t *testing.T) {
	launcher := &recordingLauncher{}
	d := NewDispatcher(emptyIDStore{newRecordingStore()}, launcher, testLogger())

	_, err := d.Submit(context.Background(), "Lisbon", 3)
	assert.ErrorIs(t, err, itinerary.ErrJobCreationFailed)
	assert.Empty(t, launcher.launched())
}

func TestDispatcher_LaunchFailure(t *testing.T) {
	store := newRecordingStore()
	d := NewDispatcher(store, &recordingLauncher{err: ErrShuttingDown}, testLogger())

	_, err := d.Submit(context.Background(), "Lisbon", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, itinerary.ErrDispatchFailed)

	writes := store.writes()
	require.Len(t, writes, 1)
	require.NotNil(t, writes[0].Status)
	assert.Equal(t, itinerary.StatusFailed, *writes[0].Status)
	assert.Nil(t, writes[0].RetryCount)
	assert.Equal(t, dispatchFailedMessage, *writes[0].Error)
}

// deadlineStore records the deadline of every update context
type deadlineStore struct {
	*recordingStore

	mu        sync.Mutex
	deadlines []time.Time
}

func (s *deadlineStore) Update(ctx context.Context, id string, patch itinerary.Patch) error {
	deadline, _ := ctx.Deadline()
	s.mu.Lock()
	s.deadlines = append(s.deadlines, deadline)
	s.mu.Unlock()
	return s.recordingStore.Update(ctx, id, patch)
}

func TestDispatcher_LaunchFailureMarkIsBounded(t *testing.T) {
	store := &deadlineStore{recordingStore: newRecordingStore()}
	d := NewDispatcher(store, &recordingLauncher{err: ErrShuttingDown}, testLogger())
	assert.Equal(t, markFailedTimeout, d.markTimeout)
	d.markTimeout = 250 * time.Millisecond

	before := time.Now()
	_, err := d.Submit(context.Background(), "Lisbon", 3)
	require.ErrorIs(t, err, itinerary.ErrDispatchFailed)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.deadlines, 1)
	assert.WithinDuration(t, before.Add(250*time.Millisecond), store.deadlines[0], 200*time.Millisecond)
}

// gatedCompleter blocks every call until the gate opens
type gatedCompleter struct {
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (c *gatedCompleter) Complete(ctx context.Context, _ string, _ completion.Params) (*completion.Response, error) {
	c.once.Do(func() { close(c.started) })
	select {
	case <-c.gate:
		return &completion.Response{Choices: []completion.Choice{{Text: validItinerary}}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestDispatcher_SubmitReturnsBeforeProviderAnswers(t *testing.T) {
	store := newRecordingStore()
	completer := &gatedCompleter{gate: make(chan struct{}), started: make(chan struct{})}
	o, _ := newTestOrchestrator(store, completer)
	bg := NewBackground(&BackgroundConfig{Runner: o, Logger: testLogger()})
	d := NewDispatcher(store, bg, testLogger())

	reqCtx, cancelRequest := context.WithCancel(context.Background())
	id, err := d.Submit(reqCtx, "Lisbon", 3)
	require.NoError(t, err)

	// The request ends while the provider is still thinking
	cancelRequest()
	<-completer.started

	rec, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, itinerary.StatusProcessing, rec.Status)

	view, err := itinerary.Describe(rec)
	require.NoError(t, err)
	assert.Equal(t, itinerary.StatusView{Found: true, Status: itinerary.ViewGenerating}, view)

	close(completer.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bg.Shutdown(ctx))

	rec, err = store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, itinerary.StatusCompleted, rec.Status)
	assert.JSONEq(t, validItinerary, rec.Result)
}
