package rag

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/lorekit/lore/internal/knowledge"
)

// metadata keys the retriever adds on top of what the store returns.
const (
	metaNodeID     = "node_id"
	metaSimilarity = "similarity"
)

// Retriever bridges knowledge.Store to the Genkit ai.Retriever interface.
type Retriever struct {
	store *knowledge.Store
}

// NewRetriever wraps store for Genkit retrieval.
func NewRetriever(store *knowledge.Store) *Retriever {
	return &Retriever{store: store}
}

// DefineDocument registers a retriever over indexed files. Options accept
// a map with "k" for the result count.
func (r *Retriever) DefineDocument(g *genkit.Genkit, name string) ai.Retriever {
	return genkit.DefineRetriever(
		g, name, nil,
		func(ctx context.Context, req *ai.RetrieverRequest) (*ai.RetrieverResponse, error) {
			query := extractQueryText(req)
			topK := extractTopK(req, 2)

			results, err := r.store.Search(ctx, query,
				knowledge.WithTopK(topK),
				knowledge.WithSourceType(knowledge.SourceTypeFile),
			)
			if err != nil {
				return nil, err
			}

			return &ai.RetrieverResponse{Documents: toGenkitDocuments(results)}, nil
		},
	)
}

func extractQueryText(req *ai.RetrieverRequest) string {
	if req.Query != nil && len(req.Query.Content) > 0 {
		return req.Query.Content[0].Text
	}
	return ""
}

// extractTopK reads "k" from the request options map, falling back to
// defaultK when absent or out of the [1,100] range.
func extractTopK(req *ai.RetrieverRequest, defaultK int) int {
	opts, ok := req.Options.(map[string]any)
	if !ok {
		return defaultK
	}
	raw, ok := opts["k"]
	if !ok {
		return defaultK
	}

	var k int
	switch v := raw.(type) {
	case int:
		k = v
	case int32:
		k = int(v)
	case int64:
		k = int(v)
	case float64:
		k = int(v)
	default:
		return defaultK
	}
	if k < 1 || k > 100 {
		return defaultK
	}
	return k
}

// toGenkitDocuments converts store results to Genkit documents, carrying
// the node ID and similarity score in metadata so the engine can build
// source nodes from the retriever response alone.
func toGenkitDocuments(results []knowledge.Result) []*ai.Document {
	docs := make([]*ai.Document, len(results))
	for i, result := range results {
		metadata := make(map[string]any, len(result.Metadata)+2)
		for k, v := range result.Metadata {
			metadata[k] = v
		}
		metadata[metaNodeID] = result.ID
		metadata[metaSimilarity] = result.Similarity

		docs[i] = ai.DocumentFromText(result.Content, metadata)
	}
	return docs
}
