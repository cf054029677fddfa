package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"audioseek/internal/config"
	"audioseek/internal/embedding"
	"audioseek/internal/fetcher"
	"audioseek/internal/segmenter"
	"audioseek/internal/server"
	"audioseek/internal/service"
	"audioseek/internal/transcribe"
	"audioseek/internal/vectorstore"
	chromemstore "audioseek/internal/vectorstore/chromem"
	"audioseek/internal/vectorstore/memory"
	"audioseek/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/audioseek/config.yaml if not provided)")
	flag.Parse()

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

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	transcriber, err := transcribe.NewClient(transcribe.Config{
		BaseURL:   cfg.Transcriber.BaseURL,
		APIKeyEnv: cfg.Transcriber.APIKeyEnv,
		Model:     cfg.Transcriber.Model,
		Prompt:    cfg.Transcriber.Prompt,
		Timeout:   time.Duration(cfg.Transcriber.TimeoutSecs) * time.Second,
	})
	if err != nil {
		logger.Fatal("transcriber init failed", zap.Error(err))
	}

	embedder, err := embedding.NewClient(embedding.Config{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKeyEnv: cfg.Embedder.APIKeyEnv,
		Model:     cfg.Embedder.Model,
		Timeout:   time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
	})
	if err != nil {
		logger.Fatal("embedder init failed", zap.Error(err))
	}

	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal("vector store init failed", zap.Error(err))
	}

	opts := service.Options{
		ChunkMS:       cfg.Ingest.ChunkMS,
		Language:      cfg.Ingest.Language,
		WorkspaceRoot: cfg.Ingest.WorkspaceRoot,
		TopK:          cfg.Search.TopK,
		MaxDistance:   cfg.Search.MaxDistance,
	}
	splitter := segmenter.New("", "", logger)
	ingestor := service.NewIngestor(splitter, transcriber, embedder, store, opts, logger)
	retrieval := service.NewRetrieval(embedder, store, opts, logger)
	ytdlp := fetcher.New(cfg.Fetcher.Bin, cfg.Fetcher.Dir, logger)

	srv := server.New(ingestor, retrieval, ytdlp, cfg.Ingest.InboxDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	return cfg.Build()
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
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, errors.New("unknown vector store: " + cfg.Store.Type)
	}
}
