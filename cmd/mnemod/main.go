// Command mnemod runs the memory daemon: the WebSocket gateway over a fully
// wired memory system. Configuration comes from the environment (a .env file
// is loaded when present):
//
//	MNEMO_ADDR          listen address (default :8765)
//	REDIS_ADDR          use Redis for short-term context (default in-process)
//	REDIS_PASSWORD      Redis auth
//	QDRANT_HOST         use Qdrant for long-term storage (default embedded)
//	QDRANT_PORT         Qdrant gRPC port (default 6334)
//	ONNX_MODEL_PATH     local model (only with the onnx build tag)
//	ONNX_TOKENIZER_PATH tokenizer.json for the local model
//	ONNX_LIBRARY_PATH   libonnxruntime.so override
package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/mnemohq/mnemo/memory"
	embcache "github.com/mnemohq/mnemo/memory/embedder/cache"
	"github.com/mnemohq/mnemo/memory/semantic"
	"github.com/mnemohq/mnemo/memory/shortterm"
	redisstore "github.com/mnemohq/mnemo/memory/shortterm/redis"
	chromemstore "github.com/mnemohq/mnemo/memory/store/chromem"
	qdrantstore "github.com/mnemohq/mnemo/memory/store/qdrant"
	"github.com/mnemohq/mnemo/server"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Printf("[MNEMOD] loaded configuration from .env")
	}

	ctx := context.Background()

	base, err := newEmbedder()
	if err != nil {
		log.Fatalf("[MNEMOD] embedder: %v", err)
	}
	embedder, err := embcache.New(base, embcache.Config{})
	if err != nil {
		log.Fatalf("[MNEMOD] embedding cache: %v", err)
	}
	defer embedder.Close()

	backend, err := newBackend(ctx, embedder)
	if err != nil {
		log.Fatalf("[MNEMOD] vector backend: %v", err)
	}
	defer backend.Close()

	shortTerm, err := newShortTerm(ctx)
	if err != nil {
		log.Fatalf("[MNEMOD] short-term store: %v", err)
	}
	defer shortTerm.Close()

	system := memory.NewSystem(semantic.New(backend, embedder), shortTerm, embedder, nil)

	gateway, err := server.New(server.Config{Memory: system})
	if err != nil {
		log.Fatalf("[MNEMOD] server: %v", err)
	}

	addr := os.Getenv("MNEMO_ADDR")
	if addr == "" {
		addr = ":8765"
	}
	if err := gateway.Run(addr); err != nil {
		log.Fatalf("[MNEMOD] server stopped: %v", err)
	}
}

// newBackend selects Qdrant when QDRANT_HOST is set, otherwise the embedded
// chromem store.
func newBackend(ctx context.Context, embedder memory.Embedder) (memory.VectorBackend, error) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		return chromemstore.New()
	}

	port := 6334
	if raw := os.Getenv("QDRANT_PORT"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("[MNEMOD] invalid QDRANT_PORT %q: %v", raw, err)
		}
		port = parsed
	}
	log.Printf("[MNEMOD] using qdrant backend at %s:%d", host, port)
	return qdrantstore.New(ctx, qdrantstore.Config{
		Host:      host,
		Port:      port,
		Dimension: uint64(embedder.Dimensions()),
	})
}

// newShortTerm selects Redis when REDIS_ADDR is set, otherwise the
// in-process TTL store.
func newShortTerm(ctx context.Context) (memory.ShortTermStore, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return shortterm.New(shortterm.DefaultTTL), nil
	}
	log.Printf("[MNEMOD] using redis short-term store at %s", addr)
	return redisstore.New(ctx, redisstore.Config{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
}
