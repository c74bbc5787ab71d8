// Package main runs the character model REST API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charquest/ml-service/internal/api"
	"github.com/charquest/ml-service/internal/characters"
	"github.com/charquest/ml-service/internal/config"
	"github.com/charquest/ml-service/internal/ml"
	"github.com/charquest/ml-service/internal/storage"
	"github.com/charquest/ml-service/internal/version"
)

var (
	configPath     = flag.String("config", "", "Config file path (default: ~/.charquest-ml/config.toml)")
	port           = flag.Int("port", 0, "API server port (overrides config)")
	dbPath         = flag.String("db-path", "", "Database path (overrides config, default: ~/.charquest-ml/data.db)")
	charactersPath = flag.String("characters", "", "Characters JSON path (overrides config)")
	trainOnStart   = flag.Bool("train", false, "Train immediately after loading the character file")
)

func main() {
	flag.Parse()

	fmt.Printf("CharQuest ML Service %s\n", version.GetVersion())
	fmt.Println("========================")
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Database
	finalDBPath := cfg.Database.Path
	if finalDBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		finalDBPath = filepath.Join(home, ".charquest-ml", "data.db")
	}
	fmt.Printf("Database: %s\n", finalDBPath)

	dbConfig := storage.DefaultConfig(finalDBPath)
	dbConfig.AutoMigrate = cfg.Database.AutoMigrate
	db, err := storage.Open(dbConfig)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	store := storage.NewService(db)
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Character data set
	if cfg.Characters.FilePath == "" {
		log.Fatal("No characters file configured (use -characters or the config file)")
	}
	source := characters.NewSource(cfg.Characters.FilePath)
	if err := source.Load(); err != nil {
		log.Fatalf("Failed to load characters from %s: %v", cfg.Characters.FilePath, err)
	}
	fmt.Printf("Characters: %d loaded from %s\n", source.Count(), source.Path())

	// Model service
	modelConfig := &ml.ModelConfig{
		Tree: ml.TreeParams{
			MaxDepth:        cfg.Model.MaxDepth,
			MinSamplesSplit: cfg.Model.MinSamplesSplit,
			MinSamplesLeaf:  cfg.Model.MinSamplesLeaf,
		},
		VocabSize: cfg.Model.VocabSize,
		Seed:      cfg.Model.Seed,
	}
	opts := ml.ServiceOptions{
		Snapshots: store.Snapshots,
		Runs:      store.TrainingRuns,
	}
	if cfg.Model.SnapshotPassword != "" {
		opts.Encryption = storage.DefaultEncryptionConfig(cfg.Model.SnapshotPassword)
	}
	model := ml.NewService(modelConfig, opts)

	ctx := context.Background()

	if cfg.Model.AutoLoadSnapshot {
		loaded, err := model.LoadLatest(ctx)
		if err != nil {
			log.Printf("Snapshot restore failed: %v", err)
		} else if loaded {
			fmt.Println("Model restored from latest snapshot")
		}
	}

	if *trainOnStart && !model.Trained() {
		metrics, err := model.Train(ctx, source.Records())
		if err != nil {
			log.Fatalf("Initial training failed: %v", err)
		}
		fmt.Printf("Model trained: accuracy %.2f over %d classes\n",
			metrics.Classifier.TestAccuracy, metrics.Classifier.NClasses)
	}

	// File watcher retrains on character file changes.
	if cfg.Characters.Watch {
		debounce, err := cfg.GetReloadDebounce()
		if err != nil {
			log.Fatalf("Invalid reload debounce: %v", err)
		}
		watcher := characters.NewWatcher(source, characters.WatcherConfig{
			Debounce: debounce,
			OnReload: func(count int) {
				log.Printf("Characters reloaded: %d records", count)
				if _, err := model.Train(context.Background(), source.Records()); err != nil {
					log.Printf("Retrain after reload failed: %v", err)
				}
			},
		})
		go func() {
			if err := watcher.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("Character watcher stopped: %v", err)
			}
		}()
		defer watcher.Stop()
	}

	// API server
	apiConfig := &api.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		TrainRatePerMin: cfg.Server.TrainRatePerMin,
	}
	server := api.NewServer(apiConfig, model, source, store)

	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start API server: %v", err)
	}

	fmt.Println()
	fmt.Printf("API server running at http://%s:%d\n", cfg.Server.Host, server.Port())
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println()
	fmt.Println("Shutting down...")

	shutdownTimeout, err := cfg.GetShutdownTimeout()
	if err != nil {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	fmt.Println("API server stopped.")
}

// loadConfig merges the config file with command line overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *charactersPath != "" {
		cfg.Characters.FilePath = *charactersPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
