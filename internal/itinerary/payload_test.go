package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleItinerary = `[{"day":1,"theme":"Old Town","activities":[{"time":"Morning","description":"Walk the json-free streets","location":"Alfama"}]}]`

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no wrapping",
			input:    sampleItinerary,
			expected: sampleItinerary,
		},
		{
			name:     "surrounding whitespace",
			input:    "\n  " + sampleItinerary + "\n\n",
			expected: sampleItinerary,
		},
		{
			name:     "valid payload containing the word json",
			input:    `[{"day":1,"theme":"json","activities":[]}]`,
			expected: `[{"day":1,"theme":"json","activities":[]}]`,
		},
		{
			name:     "valid payload containing a fence in a string",
			input:    `[{"day":1,"theme":"` + "```" + `","activities":[]}]`,
			expected: `[{"day":1,"theme":"` + "```" + `","activities":[]}]`,
		},
		{
			name:     "json fence",
			input:    "```json\n" + sampleItinerary + "\n```",
			expected: sampleItinerary,
		},
		{
			name:     "bare fence",
			input:    "```\n" + sampleItinerary + "\n```",
			expected: sampleItinerary,
		},
		{
			name:     "fence on a single line",
			input:    "```json " + sampleItinerary + "```",
			expected: sampleItinerary,
		},
		{
			name:     "prose around fence",
			input:    "Here is your itinerary:\n```json\n" + sampleItinerary + "\n```\nEnjoy your trip!",
			expected: sampleItinerary,
		},
		{
			name:     "missing closing fence",
			input:    "```json\n" + sampleItinerary,
			expected: sampleItinerary,
		},
		{
			name:     "missing opening fence",
			input:    sampleItinerary + "\n```",
			expected: sampleItinerary,
		},
		{
			name:     "nested fence inside payload",
			input:    "```json\n" + `[{"day":1,"theme":"` + "```code```" + `","activities":[]}]` + "\n```",
			expected: `[{"day":1,"theme":"` + "```code```" + `","activities":[]}]`,
		},
		{
			name:     "prose without fence",
			input:    "Sure! " + sampleItinerary + " Have fun.",
			expected: sampleItinerary,
		},
		{
			name:     "prose inside fence",
			input:    "```\nItinerary follows\n" + sampleItinerary + "\n```",
			expected: sampleItinerary,
		},
		{
			name:     "not json at all",
			input:    "  I cannot help with that.  ",
			expected: "I cannot help with that.",
		},
		{
			name:     "empty",
			input:    "   ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		sampleItinerary,
		"```json\n" + sampleItinerary + "\n```",
		"Sure! " + sampleItinerary,
	}
	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestParse(t *testing.T) {
	t.Run("valid fenced itinerary", func(t *testing.T) {
		payload, err := Parse("```json\n" + sampleItinerary + "\n```")
		require.NoError(t, err)
		assert.Equal(t, sampleItinerary, payload.String())
	})

	t.Run("whitespace is compacted", func(t *testing.T) {
		payload, err := Parse("[\n  {\"day\": 1,\n   \"theme\": \"Old Town\"}\n]")
		require.NoError(t, err)
		assert.Equal(t, `[{"day":1,"theme":"Old Town"}]`, payload.String())
	})

	keptAsIs := []struct {
		name  string
		input string
	}{
		{
			name:  "extra fields are kept",
			input: `[{"day":1,"theme":"T","notes":"bring cash","activities":[{"time":"Morning","description":"d","location":"l","cost":"$5"}]}]`,
		},
		{
			name:  "object payload",
			input: `{"destination":"Lisbon","days":[{"day":1,"theme":"Old Town"}]}`,
		},
		{
			name:  "string day numbers",
			input: `[{"day":"1","theme":"Old Town"}]`,
		},
		{
			name:  "number text is preserved",
			input: `[{"day":1,"budget":12.50,"rating":1e2}]`,
		},
	}

	for _, tt := range keptAsIs {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.input, payload.String())
		})
	}

	errorCases := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "Sorry, I can't do that"},
		{name: "empty", input: ""},
		{name: "empty array", input: "[]"},
		{name: "empty object", input: "{}"},
		{name: "scalar", input: `"day one"`},
		{name: "null", input: "null"},
		{name: "truncated", input: `[{"day":1,"theme":"Old`},
	}

	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Parse(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
			assert.Nil(t, payload)
		})
	}
}
