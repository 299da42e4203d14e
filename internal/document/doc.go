// Package document turns files under the data directory into embeddable
// nodes: it extracts plain text from the supported formats, splits it into
// overlapping word windows, and assigns each chunk a deterministic node ID
// so reindexing a file overwrites its previous chunks.
package document
