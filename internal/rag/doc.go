// Package rag implements retrieval-augmented chat: a Genkit retriever
// bridged to the knowledge store, and a condense-plus-context engine that
// turns a message history into a grounded, citation-annotated answer.
package rag
