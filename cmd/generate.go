package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lorekit/lore/internal/app"
	"github.com/lorekit/lore/internal/config"
	"github.com/lorekit/lore/internal/document"
	"github.com/lorekit/lore/internal/knowledge"
	"github.com/lorekit/lore/internal/log"
)

// runGenerate indexes the data directory into the vector store. With
// --watch it stays running and reindexes files as they change.
func runGenerate(logger log.Logger) error {
	genFlags := flag.NewFlagSet("generate", flag.ContinueOnError)
	genFlags.SetOutput(os.Stderr)
	watch := genFlags.Bool("watch", false, "Watch the data directory and reindex on change")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	if err := genFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing generate flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	files, chunks, err := indexAll(ctx, a)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", cfg.DataDir, err)
	}
	logger.Info("index complete", "files", files, "chunks", chunks)
	fmt.Printf("Indexed %d chunks from %d files in %s\n", chunks, files, cfg.DataDir)

	if !*watch {
		return nil
	}

	watcher := document.NewWatcher(cfg.DataDir,
		func(path string) { reindexFile(ctx, a, path) },
		func(path string) { removeFile(ctx, a, path) },
		func(path string) { removeDir(ctx, a, path) },
		logger)
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Stop()

	<-ctx.Done()
	return nil
}

// indexAll loads every supported file and stores its chunks. Chunks of a
// file replace whatever was indexed for that file before.
func indexAll(ctx context.Context, a *app.App) (files, chunks int, err error) {
	nodes, err := a.Loader.Load(ctx)
	if err != nil {
		return 0, 0, err
	}

	seen := map[string]bool{}
	for _, node := range nodes {
		path, _ := node.Metadata[knowledge.MetaFilePath].(string)
		if path != "" && !seen[path] {
			seen[path] = true
			if _, err := a.Knowledge.DeleteByFilePath(ctx, path); err != nil {
				return len(seen), chunks, err
			}
		}
		if err := a.Knowledge.Add(ctx, node.ID, node.Text, node.Metadata); err != nil {
			return len(seen), chunks, err
		}
		chunks++
	}
	return len(seen), chunks, nil
}

// reindexFile replaces the stored chunks of one file. Watch-mode errors
// are logged rather than fatal so a single bad file cannot stop the
// watcher.
func reindexFile(ctx context.Context, a *app.App, path string) {
	nodes, err := a.Loader.LoadFile(ctx, path)
	if err != nil {
		a.Logger.Warn("reindex failed", "path", path, "error", err)
		return
	}

	relPath := a.Loader.RelPath(path)
	if _, err := a.Knowledge.DeleteByFilePath(ctx, relPath); err != nil {
		a.Logger.Warn("clearing stale chunks failed", "path", relPath, "error", err)
		return
	}
	for _, node := range nodes {
		if err := a.Knowledge.Add(ctx, node.ID, node.Text, node.Metadata); err != nil {
			a.Logger.Warn("storing chunk failed", "id", node.ID, "error", err)
			return
		}
	}
	a.Logger.Info("file reindexed", "path", relPath, "chunks", len(nodes))
}

// removeFile drops the chunks of a deleted file.
func removeFile(ctx context.Context, a *app.App, path string) {
	relPath := a.Loader.RelPath(path)
	n, err := a.Knowledge.DeleteByFilePath(ctx, relPath)
	if err != nil {
		a.Logger.Warn("removing chunks failed", "path", relPath, "error", err)
		return
	}
	a.Logger.Info("file removed from index", "path", relPath, "chunks", n)
}

// removeDir drops the chunks of every file under a deleted directory.
func removeDir(ctx context.Context, a *app.App, path string) {
	relPath := a.Loader.RelPath(path)
	n, err := a.Knowledge.DeleteByDirPath(ctx, relPath)
	if err != nil {
		a.Logger.Warn("removing directory chunks failed", "path", relPath, "error", err)
		return
	}
	a.Logger.Info("directory removed from index", "path", relPath, "chunks", n)
}
