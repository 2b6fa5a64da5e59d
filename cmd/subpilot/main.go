package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"subpilot/internal/shared/config"
	"subpilot/internal/shared/logger"
	"subpilot/internal/shared/types"
	"subpilot/subpool"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	// Optional .env for overrides; absence is fine.
	_ = godotenv.Load()

	iniPath := filepath.Join(*configDir, "subpilot.ini")
	sourcesPath := filepath.Join(*configDir, "sources.json")

	cfg := new(types.Config)
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	sources, err := config.LoadSources(sourcesPath)
	if err != nil {
		log.Fatal().Err(err).Msgf("Failed to load sources file '%s'", sourcesPath)
	}
	if len(sources) == 0 {
		log.Warn().Str("path", sourcesPath).Msg("No subscription sources configured.")
	}

	// Defensive run-wide deadline on top of the per-call timeouts.
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.PipelineConf.DeadlineSeconds)*time.Second)
	defer cancel()

	manager := subpool.NewManager(cfg, sources, log.Logger)
	if err := manager.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Pipeline failed.")
		os.Exit(1)
	}
}
