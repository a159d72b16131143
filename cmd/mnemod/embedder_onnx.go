//go:build onnx

package main

import (
	"log"
	"os"

	"github.com/mnemohq/mnemo/memory"
	"github.com/mnemohq/mnemo/memory/embedder/onnx"
)

// newEmbedder loads the local ONNX sentence encoder.
func newEmbedder() (memory.Embedder, error) {
	modelPath := os.Getenv("ONNX_MODEL_PATH")
	if modelPath == "" {
		modelPath = "models/all-MiniLM-L6-v2.onnx"
	}
	tokenizerPath := os.Getenv("ONNX_TOKENIZER_PATH")
	if tokenizerPath == "" {
		tokenizerPath = "models/tokenizer.json"
	}

	log.Printf("[MNEMOD] loading onnx model from %s", modelPath)
	return onnx.New(onnx.Config{
		ModelPath:     modelPath,
		TokenizerPath: tokenizerPath,
		LibraryPath:   os.Getenv("ONNX_LIBRARY_PATH"),
	})
}
