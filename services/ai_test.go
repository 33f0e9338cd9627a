package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripgenie/engine"
)

func TestStripCodeFences(t *testing.T) {
	plain := `{"insights":["a"]}`
	assert.Equal(t, plain, stripCodeFences(plain))
	assert.Equal(t, plain, stripCodeFences("```json\n"+plain+"\n```"))
	assert.Equal(t, plain, stripCodeFences("```\n"+plain+"\n```"))
	assert.Equal(t, plain, stripCodeFences("  \n```json\n"+plain+"\n```\n  "))

	// Degenerate fences pass through untouched.
	assert.Equal(t, "```", stripCodeFences("```"))
	assert.Equal(t, "```json", stripCodeFences("```json"))
}

func TestNilWriterReturnsFallback(t *testing.T) {
	var w *InsightWriter
	fallback := []string{"deterministic insight"}

	insights, itineraries := w.Rewrite(context.Background(), nil, 5, fallback)
	assert.Equal(t, fallback, insights)
	assert.Nil(t, itineraries)
}

func TestBuildInsightPrompt(t *testing.T) {
	results := []engine.DestinationResult{
		{Destination: "Paris, France", Country: "France", Total: 1981},
		{Destination: "Delhi, India", Country: "India", Total: 970},
		{Destination: "Tokyo, Japan", Country: "Japan", Total: 1875},
		{Destination: "Oslo, Norway", Country: "Norway", Total: 2400},
	}

	prompt, err := buildInsightPrompt(results, 5)
	require.NoError(t, err)

	assert.Contains(t, prompt, "Trip length: 5 days")
	assert.Contains(t, prompt, "Delhi, India")
	assert.Contains(t, prompt, "Tokyo, Japan")
	assert.Contains(t, prompt, "Paris, France")
	// Only the three cheapest go into the prompt.
	assert.NotContains(t, prompt, "Oslo, Norway")
}
