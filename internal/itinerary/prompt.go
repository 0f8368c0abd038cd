package itinerary

import (
	"strconv"
	"strings"
)

// Template placeholders substituted by BuildPrompt
const (
	PlaceholderDestination = "{{destination}}"
	PlaceholderDuration    = "{{duration}}"
)

// DefaultPromptTemplate asks the provider for a JSON itinerary
const DefaultPromptTemplate = `You are a professional travel planner. Create a practical travel itinerary
for a trip to {{destination}} lasting {{duration}} days.

Respond with JSON only, no explanations or text outside the JSON. The response
must be an array with one element per day following this schema:

[
  {
    "day": 1,
    "theme": "Descriptive theme for the day",
    "activities": [
      {
        "time": "Morning/Afternoon/Evening",
        "description": "Activity description with practical tips",
        "location": "Specific location name"
      }
    ]
  }
]

Use "Morning", "Afternoon" and "Evening" as time slots, keep a logical
geographical flow between activities, and mix well-known attractions with
local experiences and dining recommendations.`

// BuildPrompt substitutes the job inputs into tmpl. An empty template falls
// back to DefaultPromptTemplate.
func BuildPrompt(tmpl string, job Job) string {
	if tmpl == "" {
		tmpl = DefaultPromptTemplate
	}
	r := strings.NewReplacer(
		PlaceholderDestination, job.Destination,
		PlaceholderDuration, strconv.Itoa(job.DurationDays),
	)
	return r.Replace(tmpl)
}
