package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"audioseek/internal/config"
	"audioseek/internal/embedding"
	"audioseek/internal/service"
	"audioseek/internal/tui"
	"audioseek/internal/vectorstore"
	chromemstore "audioseek/internal/vectorstore/chromem"
	"audioseek/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/audioseek/config.yaml if not provided)")
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		fmt.Println("Usage: audioseek-tui [--config=config.yaml] <recording_id>")
		os.Exit(1)
	}
	recordingID := args[0]

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// The TUI only searches, so logs would fight the terminal UI.
	logger := zap.NewNop()

	embedder, err := embedding.NewClient(embedding.Config{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKeyEnv: cfg.Embedder.APIKeyEnv,
		Model:     cfg.Embedder.Model,
		Timeout:   time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}

	store, err := buildStore(cfg, logger)
	if err != nil {
		log.Fatalf("vector store init failed: %v", err)
	}

	retrieval := service.NewRetrieval(embedder, store, service.Options{
		TopK:        cfg.Search.TopK,
		MaxDistance: cfg.Search.MaxDistance,
	}, logger)

	m := tui.New(retrieval, recordingID)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

func buildStore(cfg *config.AppConfig, logger *zap.Logger) (vectorstore.Store, error) {
	switch cfg.Store.Type {
	case "chromem", "":
		ccfg := cfg.Store.Chromem
		if ccfg == nil {
			ccfg = &config.ChromemConfig{Path: "./data/vectorstore"}
		}
		return chromemstore.New(chromemstore.Config{
			Path:     ccfg.Path,
			Compress: ccfg.Compress,
		}, logger)
	case "qdrant":
		if cfg.Store.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		return qdrant.NewStore(qdrant.Config{
			URL:        cfg.Store.Qdrant.URL,
			APIKey:     cfg.Store.Qdrant.APIKey,
			Collection: cfg.Store.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Store.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, errors.New("unknown vector store: " + cfg.Store.Type)
	}
}
