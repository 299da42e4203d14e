package cmd

import (
	"fmt"

	"github.com/lorekit/lore/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

func runVersion() {
	fmt.Printf("Lore %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		return
	}
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Model: %s\n", cfg.ModelName)
	fmt.Printf("  Embedding model: %s (%d dims)\n", cfg.EmbeddingModel, cfg.EmbeddingDim)
	fmt.Printf("  Ollama: %s\n", cfg.OllamaBaseURL)
	fmt.Printf("  Data directory: %s\n", cfg.DataDir)
	fmt.Printf("  Server: %s\n", cfg.ServerAddr())
}
