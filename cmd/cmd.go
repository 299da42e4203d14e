// Package cmd provides the lore CLI commands.
//
// Commands:
//   - serve: HTTP chat API server
//   - generate: index the data directory into the vector store
//   - chat: interactive terminal chat against a running server
//
// Signal handling and graceful shutdown are implemented for the
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lorekit/lore/internal/log"
)

// Execute is the main entry point for the lore CLI.
func Execute() error {
	logger := log.New(log.Config{
		Level: logLevel(),
	})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "generate":
		return runGenerate(logger)
	case "chat":
		return runChat()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Lore - chat with your documents")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lore generate [--watch]  Index the data directory into the vector store")
	fmt.Println("  lore serve [addr]        Start the HTTP chat API (default: APP_HOST:APP_PORT)")
	fmt.Println("  lore chat                Interactive chat against a running server")
	fmt.Println("  lore --version           Show version information")
	fmt.Println("  lore --help              Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  MODEL                    Ollama chat model (default: llama3.1)")
	fmt.Println("  EMBEDDING_MODEL          Ollama embedding model (default: nomic-embed-text)")
	fmt.Println("  OLLAMA_BASE_URL          Ollama server address")
	fmt.Println("  DATA_DIR                 Document directory to index (default: data)")
	fmt.Println("  DATABASE_URL             PostgreSQL connection URL (pgvector required)")
	fmt.Println("  DEBUG                    Enable debug logging")
}
