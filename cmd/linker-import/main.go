// Command linker-import builds the static knowledge base from the
// tab-delimited entity and alias tables.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/kbatlas/linker"
	"github.com/kbatlas/linker/internal/config"
)

var (
	configPath = flag.String("config", "", "Path to config file (optional, uses env vars by default)")
	dataPath   = flag.String("data", "", "Data directory (overrides config)")
	engine     = flag.String("engine", "", "Storage engine, sqlite or postgres (overrides config)")
	entities   = flag.String("entities", "", "Path to the entity table (required)")
	aliases    = flag.String("aliases", "", "Path to the alias table (required)")
)

func main() {
	flag.Parse()

	if *entities == "" || *aliases == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dataPath != "" {
		cfg.Storage.DataPath = *dataPath
	}
	if *engine != "" {
		cfg.Storage.Engine = *engine
	}

	r, err := linker.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open resolver: %v", err)
	}
	defer r.Close()

	entityFile, err := os.Open(*entities)
	if err != nil {
		log.Fatalf("Failed to open entity table: %v", err)
	}
	defer entityFile.Close()

	aliasFile, err := os.Open(*aliases)
	if err != nil {
		log.Fatalf("Failed to open alias table: %v", err)
	}
	defer aliasFile.Close()

	stats, err := r.ImportKB(context.Background(), entityFile, aliasFile)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Imported %d entities, %d aliases (%d rows skipped)",
		stats.Entities, stats.Aliases, stats.Skipped)
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadConfigFile(*configPath)
	}
	return config.LoadConfig()
}
