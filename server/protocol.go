package server

import (
	"time"

	"github.com/mnemohq/mnemo/memory"
)

// Request is one client message. Type selects the operation; the remaining
// fields are read per-operation and ignored otherwise.
type Request struct {
	// ID is echoed back so clients can correlate responses.
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`

	UserID            string            `json:"user_id,omitempty"`
	UserMessage       string            `json:"user_message,omitempty"`
	AssistantResponse string            `json:"assistant_response,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`

	Query         string  `json:"query,omitempty"`
	Limit         int     `json:"limit,omitempty"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`
	Category      string  `json:"category,omitempty"`

	Content string `json:"content,omitempty"`
}

// Response is the reply to one Request.
type Response struct {
	ID    string `json:"id,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Context  []memory.Interaction `json:"context,omitempty"`
	Results  []WireMemory         `json:"results,omitempty"`
	Clusters []WireCluster        `json:"clusters,omitempty"`
	MemoryID string               `json:"memory_id,omitempty"`
}

func (r *Response) fail(err error) {
	r.OK = false
	r.Error = err.Error()
}

// WireMemory is a search result flattened for the wire; embeddings are
// omitted since clients have no use for raw vectors.
type WireMemory struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Category   string            `json:"category"`
	CreatedAt  time.Time         `json:"created_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Confidence float64           `json:"confidence"`
	Similarity float64           `json:"similarity"`
}

// WireCluster reports one consolidation outcome.
type WireCluster struct {
	MemoryID string `json:"memory_id,omitempty"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Error    string `json:"error,omitempty"`
}

func toWireResults(results []memory.SearchResult) []WireMemory {
	out := make([]WireMemory, len(results))
	for i, r := range results {
		out[i] = WireMemory{
			ID:         r.Memory.ID,
			Content:    r.Memory.Content,
			Category:   string(r.Memory.Category),
			CreatedAt:  r.Memory.CreatedAt,
			Metadata:   r.Memory.Metadata,
			Confidence: r.Memory.Confidence,
			Similarity: r.Similarity,
		}
	}
	return out
}

func toWireClusters(clusters []memory.ClusterResult) []WireCluster {
	out := make([]WireCluster, len(clusters))
	for i, c := range clusters {
		wc := WireCluster{
			MemoryID: c.MemoryID,
			Content:  c.Content,
			Category: string(c.Category),
		}
		if c.Err != nil {
			wc.Error = c.Err.Error()
		}
		out[i] = wc
	}
	return out
}
