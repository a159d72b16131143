package memory

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds System configuration. It is constructed explicitly and
// injected; the System never reads process-wide state.
type Config struct {
	// PromoteAt is the relevance at or above which an interaction is
	// promoted to long-term memory immediately. Default: RelevanceHigh.
	PromoteAt Relevance

	// MinSimilarity is the default similarity floor for Search when the
	// caller leaves SearchOptions.MinSimilarity at zero and sets no
	// explicit floor. Default: 0.5.
	MinSimilarity float64

	// ContextLimit is the default number of turns GetContext returns
	// when the caller passes limit <= 0. Default: 10.
	ContextLimit int
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		PromoteAt:     RelevanceHigh,
		MinSimilarity: 0.5,
		ContextLimit:  10,
	}
}

// ClusterResult reports the outcome of storing one consolidated cluster.
// Cluster failures are independent: one failed store does not abort the
// rest of the session's consolidation.
type ClusterResult struct {
	// MemoryID is set when the cluster was stored successfully.
	MemoryID string

	// Content and Category describe the cluster regardless of outcome.
	Content  string
	Category Category

	// Err is set when embedding or storage failed for this cluster.
	Err error
}

// System is the memory orchestrator: the facade the conversation loop talks
// to. It owns the Interaction-to-Memory lifecycle exclusively; neither store
// creates memories on its own initiative.
//
// Searches reflect every store and consolidation call that completed before
// the search began (read-after-write consistency within the process).
type System struct {
	longTerm     LongTermStore
	shortTerm    ShortTermStore
	classifier   *Classifier
	consolidator *Consolidator
	config       *Config

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewSystem creates the orchestrator. A nil config selects DefaultConfig.
func NewSystem(longTerm LongTermStore, shortTerm ShortTermStore, embedder Embedder, config *Config) *System {
	if config == nil {
		config = DefaultConfig()
	}
	return &System{
		longTerm:     longTerm,
		shortTerm:    shortTerm,
		classifier:   NewClassifier(embedder),
		consolidator: NewConsolidator(embedder),
		config:       config,
		userLocks:    make(map[string]*sync.Mutex),
	}
}

// userLock returns the per-user mutex serializing AddInteraction and
// EndSession for one user. Different users never block each other.
func (s *System) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// AddInteraction records one exchange, classifying its relevance
// automatically. Promotion failures are logged, not returned: a failed
// promotion means that memory is not retained, nothing worse. The returned
// error covers only the short-term write itself.
func (s *System) AddInteraction(ctx context.Context, userID, userMessage, assistantResponse string, metadata map[string]string) error {
	relevance := s.classifier.Classify(ctx, userMessage, assistantResponse)
	return s.AddScoredInteraction(ctx, userID, userMessage, assistantResponse, relevance, metadata)
}

// AddScoredInteraction records one exchange with a caller-supplied
// relevance, bypassing the classifier.
func (s *System) AddScoredInteraction(ctx context.Context, userID, userMessage, assistantResponse string, relevance Relevance, metadata map[string]string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	it := Interaction{
		UserID:            userID,
		Timestamp:         time.Now(),
		Relevance:         relevance,
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
		Metadata:          cloneMetadata(metadata),
	}

	if relevance >= s.config.PromoteAt {
		if id, err := s.promote(ctx, it); err != nil {
			// Left untagged so session-end consolidation can still
			// capture the exchange.
			log.Printf("[MEMORY] immediate promotion failed for user %s: %v", userID, err)
		} else {
			if it.Metadata == nil {
				it.Metadata = make(map[string]string)
			}
			it.Metadata["promoted"] = "true"
			it.Metadata["promoted_memory_id"] = id
		}
	}

	if err := s.shortTerm.Add(ctx, it); err != nil {
		return fmt.Errorf("short-term add: %w", err)
	}
	return nil
}

// promote stores a single high-relevance interaction as a long-term memory.
func (s *System) promote(ctx context.Context, it Interaction) (string, error) {
	content := fmt.Sprintf("User: %s\nAssistant: %s", it.UserMessage, it.AssistantResponse)
	metadata := map[string]string{
		"source":    "direct_interaction",
		"user_id":   it.UserID,
		"timestamp": it.Timestamp.Format(time.RFC3339),
	}
	for k, v := range it.Metadata {
		metadata["interaction_"+k] = v
	}
	return s.longTerm.Store(ctx, content, DetectCategory(content), metadata, float64(it.Relevance))
}

// EndSession drains the user's short-term context, consolidates it into
// long-term memories, and reports each cluster's outcome independently.
// Interactions already promoted individually are excluded from the
// consolidation input so a single exchange never yields two memories.
func (s *System) EndSession(ctx context.Context, userID string) ([]ClusterResult, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	interactions, err := s.shortTerm.Drain(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("drain session: %w", err)
	}

	eligible := interactions[:0:0]
	for _, it := range interactions {
		if it.Metadata["promoted"] == "true" {
			continue
		}
		eligible = append(eligible, it)
	}

	clusters := s.consolidator.Consolidate(ctx, eligible)

	results := make([]ClusterResult, 0, len(clusters))
	for _, cluster := range clusters {
		metadata := map[string]string{
			"source":                "session_context",
			"user_id":               userID,
			"timestamp":             time.Now().Format(time.RFC3339),
			"original_interactions": joinIndices(cluster.SourceIndices),
		}
		id, err := s.longTerm.Store(ctx, cluster.Content, cluster.Category, metadata, cluster.Confidence)
		if err != nil {
			log.Printf("[MEMORY] storing consolidated cluster failed for user %s: %v", userID, err)
		}
		results = append(results, ClusterResult{
			MemoryID: id,
			Content:  cluster.Content,
			Category: cluster.Category,
			Err:      err,
		})
	}
	return results, nil
}

// Search queries the long-term store. A zero MinSimilarity is raised to the
// configured default floor; read-path errors propagate so an outage is not
// mistaken for an empty result.
func (s *System) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if opts.MinSimilarity == 0 {
		opts.MinSimilarity = s.config.MinSimilarity
	}
	return s.longTerm.Search(ctx, query, opts)
}

// GetByID retrieves a single long-term memory.
func (s *System) GetByID(ctx context.Context, id string) (Memory, error) {
	return s.longTerm.GetByID(ctx, id)
}

// GetContext returns the user's recent turns, most recent first, for prompt
// assembly.
func (s *System) GetContext(ctx context.Context, userID string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = s.config.ContextLimit
	}
	return s.shortTerm.Recent(ctx, userID, limit)
}

// Remember stores content the user explicitly asked to keep, at full
// confidence, and returns the new memory's ID.
func (s *System) Remember(ctx context.Context, userID, content string) (string, error) {
	metadata := map[string]string{
		"source":    "explicit_request",
		"user_id":   userID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	return s.longTerm.Store(ctx, content, DetectCategory(content), metadata, 1.0)
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func joinIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}
