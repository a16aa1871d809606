package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MCPConfig holds connection details for the remote tool-execution server.
type MCPConfig struct {
	URL                string `yaml:"url"`
	ConnectTimeoutSecs int    `yaml:"connect_timeout_secs"`
	CallTimeoutSecs    int    `yaml:"call_timeout_secs"`
}

// MinIOConfig holds connection details for the blob store. Credentials are
// read from the environment via the named variables.
type MinIOConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
	Secure       bool   `yaml:"secure"`
	Bucket       string `yaml:"bucket"`
	InsecureTLS  bool   `yaml:"insecure_tls"`
}

// LLMConfig selects the remote models and prompts used for RAG queries.
type LLMConfig struct {
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	VectorLength   int    `yaml:"vector_length"`
	SystemPrompt   string `yaml:"system_prompt"`
	Greeting       string `yaml:"greeting"`
	TopK           int    `yaml:"top_k"`
}

// SplitterConfig configures how documents are split into chunks.
type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	FilePath   string `yaml:"file_path"`
	Production bool   `yaml:"production"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	MCP      MCPConfig      `yaml:"mcp"`
	MinIO    MinIOConfig    `yaml:"minio"`
	LLM      LLMConfig      `yaml:"llm"`
	Splitter SplitterConfig `yaml:"splitter"`
	Log      LogConfig      `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
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

// LoadDefault tries ./config.yaml first, then ~/.config/docchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/docchat/config.yaml
// and returns them.
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

// AccessKey resolves the blob-store access key from the environment.
func (c MinIOConfig) AccessKey() string { return os.Getenv(c.AccessKeyEnv) }

// SecretKey resolves the blob-store secret key from the environment.
func (c MinIOConfig) SecretKey() string { return os.Getenv(c.SecretKeyEnv) }

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.MCP.URL == "" {
		cfg.MCP.URL = "http://localhost:8000/sse"
	}
	if cfg.MCP.ConnectTimeoutSecs == 0 {
		cfg.MCP.ConnectTimeoutSecs = 10
	}
	if cfg.MCP.CallTimeoutSecs == 0 {
		cfg.MCP.CallTimeoutSecs = 120
	}
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = "http://localhost:9000"
	}
	if cfg.MinIO.AccessKeyEnv == "" {
		cfg.MinIO.AccessKeyEnv = "MINIO_ACCESS_KEY"
	}
	if cfg.MinIO.SecretKeyEnv == "" {
		cfg.MinIO.SecretKeyEnv = "MINIO_SECRET_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "mistral-large"
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "multilingual-e5-large"
	}
	if cfg.LLM.VectorLength == 0 {
		cfg.LLM.VectorLength = 1024
	}
	if cfg.LLM.SystemPrompt == "" {
		cfg.LLM.SystemPrompt = "Answer the question using only the provided context. If the context does not contain the answer, say so."
	}
	if cfg.LLM.Greeting == "" {
		cfg.LLM.Greeting = "Hello! Ask me anything about the ingested documents."
	}
	if cfg.LLM.TopK == 0 {
		cfg.LLM.TopK = 8
	}
	if cfg.Splitter.ChunkSize == 0 {
		cfg.Splitter.ChunkSize = 1000
	}
	if cfg.Splitter.ChunkOverlap == 0 {
		cfg.Splitter.ChunkOverlap = 100
	}
	if cfg.Log.FilePath == "" {
		cfg.Log.FilePath = "docchat.log"
	}
}
