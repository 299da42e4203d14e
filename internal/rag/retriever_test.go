package rag

import (
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekit/lore/internal/knowledge"
)

func TestExtractTopK(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		options any
		want    int
	}{
		{name: "nil options", options: nil, want: 2},
		{name: "int value", options: map[string]any{"k": 5}, want: 5},
		{name: "float value from json", options: map[string]any{"k": float64(4)}, want: 4},
		{name: "int64 value", options: map[string]any{"k": int64(3)}, want: 3},
		{name: "missing key", options: map[string]any{"other": 1}, want: 2},
		{name: "zero rejected", options: map[string]any{"k": 0}, want: 2},
		{name: "over limit rejected", options: map[string]any{"k": 500}, want: 2},
		{name: "wrong type rejected", options: map[string]any{"k": "five"}, want: 2},
		{name: "non-map options", options: "k=3", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := &ai.RetrieverRequest{Options: tt.options}
			assert.Equal(t, tt.want, extractTopK(req, 2))
		})
	}
}

func TestExtractQueryText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", extractQueryText(&ai.RetrieverRequest{
		Query: ai.DocumentFromText("hello", nil),
	}))
	assert.Empty(t, extractQueryText(&ai.RetrieverRequest{}))
}

func TestToGenkitDocuments(t *testing.T) {
	t.Parallel()

	results := []knowledge.Result{
		{
			Document: knowledge.Document{
				ID:      "f1#2",
				Content: "chunk content",
				Metadata: map[string]any{
					knowledge.MetaFileName: "guide.md",
				},
			},
			Similarity: 0.75,
		},
	}

	docs := toGenkitDocuments(results)
	require.Len(t, docs, 1)
	assert.Equal(t, "chunk content", docs[0].Content[0].Text)
	assert.Equal(t, "f1#2", docs[0].Metadata[metaNodeID])
	assert.Equal(t, float32(0.75), docs[0].Metadata[metaSimilarity])
	assert.Equal(t, "guide.md", docs[0].Metadata[knowledge.MetaFileName])
}
