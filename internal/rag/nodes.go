package rag

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/lorekit/lore/internal/knowledge"
)

// SourceNode is the citation payload attached to a chat response. Clients
// resolve `[citation:<node_id>]()` markers in the answer against ID.
type SourceNode struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
	Score    float32        `json:"score"`
	Text     string         `json:"text"`
	URL      string         `json:"url,omitempty"`
}

// NodesFromDocuments converts retrieved documents into source nodes.
// urlPrefix, when set, yields links of the form
// <prefix>/data/<path relative to the data directory>.
func NodesFromDocuments(docs []*ai.Document, urlPrefix string) []SourceNode {
	nodes := make([]SourceNode, 0, len(docs))
	for _, doc := range docs {
		node := SourceNode{
			Metadata: map[string]any{},
			Text:     docText(doc),
		}
		for k, v := range doc.Metadata {
			switch k {
			case metaNodeID:
				node.ID, _ = v.(string)
			case metaSimilarity:
				node.Score = toFloat32(v)
			default:
				node.Metadata[k] = v
			}
		}
		node.URL = nodeURL(node.Metadata, urlPrefix)
		nodes = append(nodes, node)
	}
	return nodes
}

func docText(doc *ai.Document) string {
	var b strings.Builder
	for _, part := range doc.Content {
		b.WriteString(part.Text)
	}
	return b.String()
}

func nodeURL(metadata map[string]any, urlPrefix string) string {
	if urlPrefix == "" {
		return ""
	}
	path, _ := metadata[knowledge.MetaFilePath].(string)
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/data/%s", strings.TrimRight(urlPrefix, "/"), path)
}

func toFloat32(v any) float32 {
	switch n := v.(type) {
	case float32:
		return n
	case float64:
		return float32(n)
	case int:
		return float32(n)
	default:
		return 0
	}
}
