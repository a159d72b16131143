package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
)

// ClusterThreshold is the cosine similarity above which two interactions
// are considered part of the same topic during consolidation.
const ClusterThreshold = 0.8

// ConsolidatedMemory is one cluster of related interactions merged into a
// single memory candidate.
type ConsolidatedMemory struct {
	// Content is the member exchanges rendered as user/assistant turn
	// pairs, joined by newlines, in the order they were clustered.
	Content string

	// Category is the keyword-vote category of the merged content.
	Category Category

	// Relevance is the highest relevance among the members.
	Relevance Relevance

	// Confidence is min(1.0, Relevance + 0.2).
	Confidence float64

	// SourceIndices are the members' positions in the input slice passed
	// to Consolidate, recorded as provenance.
	SourceIndices []int
}

// Consolidator merges a session's interactions into durable memory
// candidates by greedy embedding-similarity clustering.
//
// The clustering is a deliberately asymmetric, order-dependent single pass:
// interactions are visited in descending relevance order, each unassigned
// one seeds a cluster, and every later unassigned interaction whose
// similarity to the seed exceeds ClusterThreshold joins it. Two clusters are
// never merged even if some of their members are mutually similar. The
// asymmetry keeps the pass reproducible and bounds the cost at one embedding
// per interaction plus a quadratic number of comparisons over session size.
type Consolidator struct {
	embedder  Embedder
	threshold float64
}

// NewConsolidator creates a consolidator clustering at ClusterThreshold.
func NewConsolidator(embedder Embedder) *Consolidator {
	return &Consolidator{embedder: embedder, threshold: ClusterThreshold}
}

// Consolidate clusters the given interactions and returns one candidate per
// cluster. Interactions at RelevanceLow or below neither seed nor join
// clusters. The same input always produces the same clusters: sorting is
// stable, iteration order is fixed, and there is no randomness.
//
// An embedding failure never aborts the run: a seed that cannot be embedded
// still becomes a singleton cluster, and a candidate that cannot be embedded
// is left for a later cluster of its own.
func (c *Consolidator) Consolidate(ctx context.Context, interactions []Interaction) []ConsolidatedMemory {
	// Stable sort by descending relevance, remembering input positions
	// for provenance. Stability keeps equal-relevance interactions in
	// input order, which the greedy pass depends on for determinism.
	order := make([]int, len(interactions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return interactions[order[a]].Relevance > interactions[order[b]].Relevance
	})

	embeddings := make(map[int][]float32, len(interactions))
	embed := func(idx int) []float32 {
		if vec, ok := embeddings[idx]; ok {
			return vec
		}
		vec, err := c.embedder.Embed(ctx, interactions[idx].CombinedText())
		if err != nil {
			log.Printf("[CONSOLIDATE] embedding interaction %d failed: %v", idx, err)
			vec = nil
		}
		embeddings[idx] = vec
		return vec
	}

	assigned := make([]bool, len(interactions))
	var out []ConsolidatedMemory

	for pos, idx := range order {
		if assigned[idx] {
			continue
		}
		if interactions[idx].Relevance <= RelevanceLow {
			continue
		}
		assigned[idx] = true

		members := []int{idx}
		if seedVec := embed(idx); seedVec != nil {
			for _, otherIdx := range order[pos+1:] {
				if assigned[otherIdx] {
					continue
				}
				if interactions[otherIdx].Relevance <= RelevanceLow {
					continue
				}
				otherVec := embed(otherIdx)
				if otherVec == nil {
					continue
				}
				if CosineSimilarity(seedVec, otherVec) > c.threshold {
					members = append(members, otherIdx)
					assigned[otherIdx] = true
				}
			}
		}

		out = append(out, c.merge(interactions, members))
	}
	return out
}

// merge renders one cluster's members into a single memory candidate.
func (c *Consolidator) merge(interactions []Interaction, members []int) ConsolidatedMemory {
	turns := make([]string, 0, len(members))
	maxRelevance := RelevanceIgnore
	for _, idx := range members {
		it := interactions[idx]
		turns = append(turns, fmt.Sprintf("User: %s\nAssistant: %s", it.UserMessage, it.AssistantResponse))
		if it.Relevance > maxRelevance {
			maxRelevance = it.Relevance
		}
	}

	content := strings.Join(turns, "\n")
	confidence := float64(maxRelevance) + 0.2
	if confidence > 1.0 {
		confidence = 1.0
	}

	return ConsolidatedMemory{
		Content:       content,
		Category:      DetectCategory(content),
		Relevance:     maxRelevance,
		Confidence:    confidence,
		SourceIndices: members,
	}
}
