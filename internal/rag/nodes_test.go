package rag

import (
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekit/lore/internal/knowledge"
)

func TestNodesFromDocuments(t *testing.T) {
	t.Parallel()

	t.Run("maps id score text and url", func(t *testing.T) {
		t.Parallel()
		docs := []*ai.Document{
			ai.DocumentFromText("chunk one", map[string]any{
				metaNodeID:             "f1#0",
				metaSimilarity:         float32(0.87),
				knowledge.MetaFileName: "guide.md",
				knowledge.MetaFilePath: "sub/guide.md",
			}),
		}

		nodes := NodesFromDocuments(docs, "http://localhost:8000/api/files")
		require.Len(t, nodes, 1)
		assert.Equal(t, "f1#0", nodes[0].ID)
		assert.InDelta(t, 0.87, nodes[0].Score, 0.001)
		assert.Equal(t, "chunk one", nodes[0].Text)
		assert.Equal(t, "http://localhost:8000/api/files/data/sub/guide.md", nodes[0].URL)
		assert.Equal(t, "guide.md", nodes[0].Metadata[knowledge.MetaFileName])
		// Internal keys do not leak into the client-visible metadata.
		assert.NotContains(t, nodes[0].Metadata, metaNodeID)
		assert.NotContains(t, nodes[0].Metadata, metaSimilarity)
	})

	t.Run("empty prefix yields no url", func(t *testing.T) {
		t.Parallel()
		docs := []*ai.Document{
			ai.DocumentFromText("chunk", map[string]any{
				metaNodeID:             "f1#0",
				knowledge.MetaFilePath: "guide.md",
			}),
		}

		nodes := NodesFromDocuments(docs, "")
		require.Len(t, nodes, 1)
		assert.Empty(t, nodes[0].URL)
	})

	t.Run("trailing slash in prefix is trimmed", func(t *testing.T) {
		t.Parallel()
		docs := []*ai.Document{
			ai.DocumentFromText("chunk", map[string]any{
				knowledge.MetaFilePath: "guide.md",
			}),
		}

		nodes := NodesFromDocuments(docs, "http://host/files/")
		assert.Equal(t, "http://host/files/data/guide.md", nodes[0].URL)
	})

	t.Run("missing file path yields no url", func(t *testing.T) {
		t.Parallel()
		docs := []*ai.Document{ai.DocumentFromText("chunk", map[string]any{})}

		nodes := NodesFromDocuments(docs, "http://host/files")
		assert.Empty(t, nodes[0].URL)
	})

	t.Run("no documents yields empty slice", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, NodesFromDocuments(nil, "http://host"))
	})
}
