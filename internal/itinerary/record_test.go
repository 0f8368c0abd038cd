package itinerary

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := NewRecord("Tokyo", 4, now)

	assert.Equal(t, "Tokyo", rec.Destination)
	assert.Equal(t, 4, rec.DurationDays)
	assert.Equal(t, StatusProcessing, rec.Status)
	assert.Zero(t, rec.RetryCount)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, now, rec.UpdatedAt)
	assert.Nil(t, rec.CompletedAt)
	assert.Empty(t, rec.Result)
	assert.Empty(t, rec.Error)
}

func TestPatch_Apply(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	later := created.Add(time.Minute)

	t.Run("failed attempt only touches retry count and updatedAt", func(t *testing.T) {
		rec := NewRecord("Tokyo", 4, created)
		AttemptFailed(1, later).Apply(&rec)

		assert.Equal(t, StatusProcessing, rec.Status)
		assert.Equal(t, 1, rec.RetryCount)
		assert.Equal(t, later, rec.UpdatedAt)
		assert.Equal(t, created, rec.CreatedAt)
		assert.Nil(t, rec.CompletedAt)
	})

	t.Run("completed sets result and completedAt", func(t *testing.T) {
		rec := NewRecord("Tokyo", 4, created)
		Completed(0, `[{"day":1}]`, later).Apply(&rec)

		assert.Equal(t, StatusCompleted, rec.Status)
		assert.Equal(t, `[{"day":1}]`, rec.Result)
		assert.Empty(t, rec.Error)
		require.NotNil(t, rec.CompletedAt)
		assert.Equal(t, later, *rec.CompletedAt)
	})

	t.Run("failed sets error and completedAt", func(t *testing.T) {
		rec := NewRecord("Tokyo", 4, created)
		Failed(2, ExhaustedMessage(3), later).Apply(&rec)

		assert.Equal(t, StatusFailed, rec.Status)
		assert.Equal(t, "3 retry exceed and failed", rec.Error)
		assert.Equal(t, 2, rec.RetryCount)
		assert.Empty(t, rec.Result)
		require.NotNil(t, rec.CompletedAt)
	})

	t.Run("failed with negative attempt keeps retry count", func(t *testing.T) {
		rec := NewRecord("Tokyo", 4, created)
		rec.RetryCount = 1
		Failed(-1, "dispatch failed", later).Apply(&rec)

		assert.Equal(t, 1, rec.RetryCount)
		assert.Equal(t, StatusFailed, rec.Status)
	})
}

func TestPatch_Fields(t *testing.T) {
	now := time.Now()

	assert.Equal(t, []string{FieldRetryCount, FieldUpdatedAt}, AttemptFailed(0, now).Fields())
	assert.Equal(t,
		[]string{FieldStatus, FieldRetryCount, FieldResult, FieldUpdatedAt, FieldCompletedAt},
		Completed(0, "[]", now).Fields(),
	)
	assert.Equal(t,
		[]string{FieldStatus, FieldRetryCount, FieldError, FieldUpdatedAt, FieldCompletedAt},
		Failed(2, "boom", now).Fields(),
	)
}

func TestValidateSubmission(t *testing.T) {
	tests := []struct {
		name         string
		destination  string
		durationDays int
		wantField    string
	}{
		{name: "valid", destination: "Tokyo", durationDays: 4},
		{name: "empty destination", destination: "", durationDays: 4, wantField: "destination"},
		{name: "blank destination", destination: "   ", durationDays: 4, wantField: "destination"},
		{name: "zero duration", destination: "Tokyo", durationDays: 0, wantField: "durationDays"},
		{name: "negative duration", destination: "Tokyo", durationDays: -2, wantField: "durationDays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSubmission(tt.destination, tt.durationDays)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	job := Job{ID: "job-1", Destination: "Kyoto", DurationDays: 3}

	prompt := BuildPrompt("Plan {{duration}} days in {{destination}}.", job)
	assert.Equal(t, "Plan 3 days in Kyoto.", prompt)

	fallback := BuildPrompt("", job)
	assert.Contains(t, fallback, "trip to Kyoto lasting 3 days")
	assert.NotContains(t, fallback, PlaceholderDestination)
	assert.NotContains(t, fallback, PlaceholderDuration)
}
