// Package memory implements a tiered memory system for conversational
// assistants: a short-term context store for recent exchanges and a
// long-term semantic store for durable, embedding-searchable memories.
//
// Every interaction flows through a relevance classifier. High-relevance
// exchanges are promoted to long-term memory immediately; everything else
// waits in short-term context until the session ends, when the consolidator
// clusters related exchanges by embedding similarity and merges each cluster
// into a single durable memory.
//
// Architecture:
//   - Embedder: text-to-vector conversion (ONNX all-MiniLM-L6-v2 for local
//     use, mock for testing, ristretto cache decorator for both)
//   - VectorBackend: vector storage (chromem-go embedded, qdrant over gRPC)
//   - ShortTermStore: ephemeral per-user context (in-process or Redis)
//   - System: the orchestrator tying the tiers together
//
// The semantic subpackage composes an Embedder and a VectorBackend into the
// long-term store; the System facade is what the conversation loop talks to.
package memory
