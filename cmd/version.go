package cmd

import (
	"fmt"

	"github.com/docuchat/docuchat/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

func runVersion() {
	fmt.Printf("DocuChat %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		return
	}
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Model: %s\n", cfg.ModelName)
	fmt.Printf("  Embedder: %s\n", cfg.EmbedderModel)
	fmt.Printf("  Ollama: %s\n", cfg.OllamaHost)
	fmt.Printf("  Listen: %s\n", cfg.ListenAddr)
	fmt.Printf("  Data: %s\n", cfg.DataDir)
}
