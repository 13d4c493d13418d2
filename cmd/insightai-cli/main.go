package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"insightai/internal/chunker"
	"insightai/internal/embedding/hashing"
	"insightai/internal/generation/extractive"
	"insightai/internal/loader"
	"insightai/internal/pipeline"
	"insightai/internal/session"
	"insightai/internal/tui"
	"insightai/internal/vectorstore/memory"
)

// Offline mode: ingest one document into the in-process store and chat
// with it in the terminal. No remote services involved.
func main() {
	_ = godotenv.Load()
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) != 1 {
		fmt.Println("Usage: insightai-cli document.{txt,pdf,html}")
		os.Exit(1)
	}

	log := zap.NewNop()
	store := memory.NewStore()
	emb := hashing.NewEmbedder(0)
	gen := extractive.NewGenerator(0)

	sessions := session.NewManager(store, log, session.Config{Dimension: emb.Dimension()})
	ingester := pipeline.NewIngester(loader.New(0), chunker.New(0, 0), emb, store, log)
	answerer := pipeline.NewAnswerer(emb, store, gen, 0, log)

	ctx := context.Background()
	_, collection, err := sessions.Register(ctx)
	if err != nil {
		fmt.Println("failed to create collection:", err)
		os.Exit(1)
	}
	count, err := ingester.Ingest(ctx, loader.Source{FilePath: inputs[0]}, collection)
	if err != nil {
		fmt.Println("ingest failed:", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %d chunks from %s\n", count, inputs[0])

	m := tui.New(answerer, collection, filepath.Base(inputs[0]))
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Println("tui failed:", err)
		os.Exit(1)
	}
}
