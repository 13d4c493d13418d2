package main

import (
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"insightai/internal/chunker"
	"insightai/internal/config"
	"insightai/internal/domain"
	embgemini "insightai/internal/embedding/gemini"
	"insightai/internal/embedding/hashing"
	"insightai/internal/generation/extractive"
	gengemini "insightai/internal/generation/gemini"
	"insightai/internal/loader"
	"insightai/internal/logger"
	"insightai/internal/pipeline"
	"insightai/internal/server"
	"insightai/internal/session"
	"insightai/internal/vectorstore/memory"
	"insightai/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stdlog.Fatalf("failed to load config: %v", err)
	}

	log := logger.New(cfg.Log.FilePath, cfg.Log.Production)
	defer log.Sync()

	// Assemble collaborators
	var store domain.VectorStore
	switch cfg.VectorStore.Type {
	case "memory", "":
		store = memory.NewStore()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatal("qdrant config missing")
		}
		q, err := qdrant.New(qdrant.Config{
			URL:    cfg.VectorStore.Qdrant.URL,
			APIKey: os.Getenv(cfg.VectorStore.Qdrant.APIKeyEnv),
		})
		if err != nil {
			log.Fatal("qdrant init failed", zap.Error(err))
		}
		defer q.Close()
		store = q
	default:
		log.Fatal("unknown vector store", zap.String("type", cfg.VectorStore.Type))
	}

	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hashing", "":
		dim := 0
		if cfg.Embedder.Hashing != nil {
			dim = cfg.Embedder.Hashing.Dimension
		}
		emb = hashing.NewEmbedder(dim)
	case "gemini":
		client, err := embgemini.NewClient(embgemini.Config{
			APIKeyEnv: cfg.Embedder.Gemini.APIKeyEnv,
			Model:     cfg.Embedder.Gemini.Model,
			Timeout:   time.Duration(cfg.Embedder.Gemini.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatal("gemini embedder init failed", zap.Error(err))
		}
		emb = client
	default:
		log.Fatal("unknown embedder", zap.String("type", cfg.Embedder.Type))
	}

	var gen domain.Generator
	switch cfg.Generator.Type {
	case "extractive", "":
		maxSentences := 0
		if cfg.Generator.Extractive != nil {
			maxSentences = cfg.Generator.Extractive.MaxSentences
		}
		gen = extractive.NewGenerator(maxSentences)
	case "gemini":
		client, err := gengemini.NewClient(gengemini.Config{
			APIKeyEnv: cfg.Generator.Gemini.APIKeyEnv,
			Model:     cfg.Generator.Gemini.Model,
			Timeout:   time.Duration(cfg.Generator.Gemini.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatal("gemini generator init failed", zap.Error(err))
		}
		gen = client
	default:
		log.Fatal("unknown generator", zap.String("type", cfg.Generator.Type))
	}

	sessions := session.NewManager(store, log, session.Config{
		IdleTimeout: cfg.Session.IdleTimeout(),
		CallTimeout: cfg.Session.CallTimeout(),
		Dimension:   emb.Dimension(),
	})
	sweeper := session.NewSweeper(sessions, cfg.Session.SweepInterval(), log)
	sweeper.Start()

	ingester := pipeline.NewIngester(
		loader.New(cfg.Session.CallTimeout()),
		chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap),
		emb, store, log,
	)
	answerer := pipeline.NewAnswerer(emb, store, gen, cfg.Retrieval.TopK, log)

	srv := server.New(server.Config{
		Port:               cfg.Server.Port,
		CorsAllowedOrigins: cfg.Server.CorsAllowedOrigins,
		BodyLimitMB:        cfg.Server.BodyLimitMB,
	}, log, sessions, ingester, answerer)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
		if err := srv.Shutdown(); err != nil {
			log.Warn("server shutdown failed", zap.Error(err))
		}
		sweeper.Stop()
	}
}
