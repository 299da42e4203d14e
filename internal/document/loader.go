package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lorekit/lore/internal/knowledge"
	"github.com/lorekit/lore/internal/log"
)

// maxFileSize caps how much of a single file the loader will read.
const maxFileSize = 64 << 20

// Node is an embeddable chunk ready for the knowledge store.
type Node struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Loader walks a data directory and produces nodes from its files.
type Loader struct {
	dataDir   string
	extractor *Extractor
	chunker   *Chunker
	logger    log.Logger
}

// NewLoader builds a Loader rooted at dataDir.
func NewLoader(dataDir string, chunkSize, chunkOverlap int, logger log.Logger) *Loader {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loader{
		dataDir:   dataDir,
		extractor: NewExtractor(),
		chunker:   NewChunker(chunkSize, chunkOverlap),
		logger:    logger,
	}
}

// DataDir returns the directory the loader reads from.
func (l *Loader) DataDir() string {
	return l.dataDir
}

// Load walks the data directory and returns the nodes of every supported
// file. Hidden files and directories are skipped. Files that fail to
// extract are logged and skipped rather than aborting the whole walk.
func (l *Loader) Load(ctx context.Context) ([]Node, error) {
	info, err := os.Stat(l.dataDir)
	if err != nil {
		return nil, fmt.Errorf("data directory %s: %w", l.dataDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s: not a directory", l.dataDir)
	}

	var nodes []Node
	err = filepath.WalkDir(l.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != l.dataDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !Supported(path) {
			return nil
		}

		fileNodes, err := l.LoadFile(ctx, path)
		if err != nil {
			l.logger.Warn("skipping file", "path", path, "error", err)
			return nil
		}
		nodes = append(nodes, fileNodes...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", l.dataDir, err)
	}

	l.logger.Info("documents loaded", "data_dir", l.dataDir, "nodes", len(nodes))
	return nodes, nil
}

// LoadFile extracts and chunks a single file into nodes.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]Node, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("file too large (%d bytes)", info.Size())
	}

	sections, err := l.extractor.Extract(path)
	if err != nil {
		return nil, err
	}

	relPath := l.RelPath(path)
	fileID := fileID(relPath)
	indexedAt := time.Now().UTC().Format(time.RFC3339)

	var nodes []Node
	chunkIndex := 0
	for _, sec := range sections {
		for _, chunk := range l.chunker.Chunk(sec.Text, chunkIndex) {
			meta := map[string]any{
				knowledge.MetaFileName:   filepath.Base(path),
				knowledge.MetaFilePath:   relPath,
				knowledge.MetaChunkIndex: chunk.Index,
				knowledge.MetaSourceType: knowledge.SourceTypeFile,
				knowledge.MetaIndexedAt:  indexedAt,
			}
			if sec.Page > 0 {
				meta[knowledge.MetaPage] = sec.Page
			}
			nodes = append(nodes, Node{
				ID:       fmt.Sprintf("%s#%d", fileID, chunk.Index),
				Text:     chunk.Text,
				Metadata: meta,
			})
			chunkIndex = chunk.Index + 1
		}
	}

	l.logger.Debug("file chunked", "path", relPath, "sections", len(sections), "nodes", len(nodes))
	return nodes, nil
}

// RelPath returns path relative to the data directory, with forward
// slashes so IDs and source URLs are stable across platforms.
func (l *Loader) RelPath(path string) string {
	rel, err := filepath.Rel(l.dataDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// fileID derives a stable short identifier from the file's relative path.
// Reindexing the same file therefore reuses the same node IDs and the
// store upsert replaces the old chunks in place.
func fileID(relPath string) string {
	sum := sha256.Sum256([]byte(relPath))
	return hex.EncodeToString(sum[:])[:12]
}
