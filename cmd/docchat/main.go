package main

import (
	"flag"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"docchat/internal/blob"
	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/history"
	"docchat/internal/ingest"
	"docchat/internal/logger"
	"docchat/internal/parser"
	"docchat/internal/rag"
	"docchat/internal/session"
	"docchat/internal/toolclient"
	"docchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docchat/config.yaml if not provided)")
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

	zlog := logger.New(cfg.Log.FilePath, cfg.Log.Production)
	defer zlog.Sync()

	// One session for the process lifetime; a failed connect is reported
	// once and the application stays usable.
	client := toolclient.New(toolclient.Config{
		ConnectTimeout: time.Duration(cfg.MCP.ConnectTimeoutSecs) * time.Second,
		CallTimeout:    time.Duration(cfg.MCP.CallTimeoutSecs) * time.Second,
	}, zlog)
	if err := client.Connect(cfg.MCP.URL); err != nil {
		zlog.Warn("failed to connect to tool server", zap.String("url", cfg.MCP.URL), zap.Error(err))
	}
	defer client.Close()
	adapter := toolclient.NewAdapter(client, zlog)

	store, err := blob.NewStore(blob.Config{
		Endpoint:    cfg.MinIO.Endpoint,
		AccessKey:   cfg.MinIO.AccessKey(),
		SecretKey:   cfg.MinIO.SecretKey(),
		Secure:      cfg.MinIO.Secure,
		InsecureTLS: cfg.MinIO.InsecureTLS,
	})
	if err != nil {
		log.Fatalf("failed to create blob store client: %v", err)
	}

	state := session.New(cfg.LLM.EmbeddingModel, cfg.LLM.VectorLength)
	hist := history.New()

	splitter := chunker.NewWindowSplitter(cfg.Splitter.ChunkSize, cfg.Splitter.ChunkOverlap)
	docs := parser.New()
	web := parser.NewWebLoader(0, cfg.MinIO.InsecureTLS)
	pipeline := ingest.New(store, docs, web, splitter, adapter, zlog)

	orchestrator := rag.New(adapter, state, hist, rag.Config{
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		SystemPrompt:   cfg.LLM.SystemPrompt,
		TopK:           cfg.LLM.TopK,
	}, zlog)

	if client.Connected() {
		if err := orchestrator.CreateSession(); err != nil {
			zlog.Warn("failed to create warehouse session", zap.Error(err))
		}
	}

	m := tui.New(orchestrator, pipeline, state, hist, cfg.MinIO.Bucket, cfg.LLM.Greeting)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
