// Package knowledge manages embedded document chunks ("nodes") with vector
// search on PostgreSQL + pgvector.
//
// # Overview
//
// The generate step chunks source files and calls Store.Add, which embeds
// the chunk text via the configured Ollama embedder and upserts it into the
// documents table. At chat time Store.Search embeds the (condensed) user
// question and runs a cosine top-k query, optionally filtered by metadata
// containment (e.g. source_type=file).
//
//	Loader/Chunker                Chat engine
//	      |                            |
//	      v                            v
//	  Store.Add                   Store.Search
//	      |                            |
//	      +-- Embedder (Ollama) -------+
//	      |                            |
//	      v                            v
//	    documents table (PostgreSQL + pgvector, cosine HNSW)
//
// # Thread Safety
//
// Store is safe for concurrent use; all state lives in PostgreSQL and the
// embedder client.
package knowledge
