//go:build !onnx

package main

import (
	"log"

	"github.com/mnemohq/mnemo/memory"
	"github.com/mnemohq/mnemo/memory/embedder/mock"
)

// newEmbedder returns the deterministic hash embedder. Build with the onnx
// tag for real semantic embeddings.
func newEmbedder() (memory.Embedder, error) {
	log.Printf("[MNEMOD] using mock embedder (build with -tags onnx for local model inference)")
	return mock.New(), nil
}
