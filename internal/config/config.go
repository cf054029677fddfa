package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	ChunkMS       int64  `yaml:"chunk_ms"`
	Language      string `yaml:"language"`
	WorkspaceRoot string `yaml:"workspace_root"`
	InboxDir      string `yaml:"inbox_dir"`
}

// TranscriberConfig configures the speech-to-text client.
type TranscriberConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Prompt      string `yaml:"prompt,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig configures the text embedding client.
type EmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ChromemConfig configures the embedded chromem vector store.
type ChromemConfig struct {
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// StoreConfig selects and configures the vector store implementation.
type StoreConfig struct {
	Type    string         `yaml:"type"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
	Qdrant  *QdrantConfig  `yaml:"qdrant,omitempty"`
}

// SearchConfig configures semantic search ranking.
type SearchConfig struct {
	TopK        int     `yaml:"top_k"`
	MaxDistance float64 `yaml:"max_distance"`
}

// FetcherConfig configures the remote audio fetcher.
type FetcherConfig struct {
	Bin string `yaml:"bin"`
	Dir string `yaml:"dir"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Store       StoreConfig       `yaml:"store"`
	Search      SearchConfig      `yaml:"search"`
	Fetcher     FetcherConfig     `yaml:"fetcher"`
	LogLevel    string            `yaml:"log_level"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/audioseek/config.yaml.
// If neither exists, it writes defaults to ~/.config/audioseek/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "audioseek", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server: ServerConfig{Addr: ":8080"},
		Ingest: IngestConfig{
			ChunkMS:  60_000,
			Language: "pt",
			InboxDir: "./temp_audio",
		},
		Transcriber: TranscriberConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "whisper-1",
			TimeoutSecs: 600,
		},
		Embedder: EmbedderConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "text-embedding-3-small",
			TimeoutSecs: 30,
		},
		Store: StoreConfig{
			Type:    "chromem",
			Chromem: &ChromemConfig{Path: "./data/vectorstore"},
		},
		Search:  SearchConfig{TopK: 3, MaxDistance: 0.6},
		Fetcher: FetcherConfig{Bin: "yt-dlp", Dir: "./temp_audio"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Ingest.ChunkMS == 0 {
		cfg.Ingest.ChunkMS = def.Ingest.ChunkMS
	}
	if cfg.Ingest.Language == "" {
		cfg.Ingest.Language = def.Ingest.Language
	}
	if cfg.Ingest.InboxDir == "" {
		cfg.Ingest.InboxDir = def.Ingest.InboxDir
	}
	if cfg.Transcriber.BaseURL == "" {
		cfg.Transcriber.BaseURL = def.Transcriber.BaseURL
	}
	if cfg.Transcriber.APIKeyEnv == "" {
		cfg.Transcriber.APIKeyEnv = def.Transcriber.APIKeyEnv
	}
	if cfg.Transcriber.Model == "" {
		cfg.Transcriber.Model = def.Transcriber.Model
	}
	if cfg.Transcriber.TimeoutSecs == 0 {
		cfg.Transcriber.TimeoutSecs = def.Transcriber.TimeoutSecs
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = def.Embedder.BaseURL
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = def.Embedder.APIKeyEnv
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = def.Embedder.Model
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = def.Embedder.TimeoutSecs
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = def.Store.Type
	}
	if cfg.Store.Type == "chromem" && cfg.Store.Chromem == nil {
		cfg.Store.Chromem = def.Store.Chromem
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = def.Search.TopK
	}
	if cfg.Search.MaxDistance == 0 {
		cfg.Search.MaxDistance = def.Search.MaxDistance
	}
	if cfg.Fetcher.Bin == "" {
		cfg.Fetcher.Bin = def.Fetcher.Bin
	}
	if cfg.Fetcher.Dir == "" {
		cfg.Fetcher.Dir = def.Fetcher.Dir
	}
}
