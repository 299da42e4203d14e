package document

import "strings"

// Chunk is one overlapping word window of a section.
type Chunk struct {
	Index int
	Text  string
}

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
// Overlap is clamped below size so the window always advances.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into windows of chunkSize words, each starting
// chunkSize-chunkOverlap words after the previous one. Chunk indexes start
// at firstIndex so multi-section documents get file-wide numbering.
func (c *Chunker) Chunk(text string, firstIndex int) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}

	var chunks []Chunk
	index := firstIndex
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Index: index,
			Text:  strings.Join(words[i:end], " "),
		})
		index++
		if end >= len(words) {
			break
		}
	}
	return chunks
}
