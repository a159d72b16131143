package memory

import (
	"context"
	"log"
	"regexp"
	"strings"
	"sync"
)

// Relevance is the ordinal importance scale driving retention. Thresholds
// are always compared with >=, never equality.
type Relevance float64

const (
	// RelevanceCritical marks exchanges that must be kept: explicit
	// remember requests, preferences, corrections.
	RelevanceCritical Relevance = 1.0

	// RelevanceHigh marks very relevant exchanges; promoted to long-term
	// memory immediately.
	RelevanceHigh Relevance = 0.8

	// RelevanceMedium marks moderately relevant context.
	RelevanceMedium Relevance = 0.5

	// RelevanceLow marks exchanges that might matter; kept in short-term
	// context only.
	RelevanceLow Relevance = 0.2

	// RelevanceIgnore marks noise: bare greetings and acknowledgments.
	RelevanceIgnore Relevance = 0.0
)

// criticalPatterns match against the combined user+assistant text. Any hit
// short-circuits to RelevanceCritical: explicit lexical signals are stronger
// evidence than embedding similarity and must not be overridden by it.
var criticalPatterns = compilePatterns(
	`remember this`,
	`don't forget`,
	`important`,
	`\balways\b`,
	`\bnever\b`,
	`\bmust\b`,
	`prefer`,
	`allerg`,
	`call me`,
	`my name`,
)

// ignorePatterns match against the bare user message only: a greeting with
// nothing else in it carries no information worth keeping.
var ignorePatterns = compilePatterns(
	`^(hi|hello|hey)[.!]*$`,
	`^thanks?( you)?[.!]*$`,
	`^(ok|okay|sure|yes|no|yep|nope)[.!]*$`,
	`^(bye|goodbye|good night)[.!]*$`,
)

// importanceTopics are the fixed phrases the embedding fallback compares
// against when no pattern fires.
var importanceTopics = []string{
	"preference", "fact", "information", "detail",
	"remember", "important", "specific", "personal",
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return out
}

// Classifier scores an interaction's importance. Cheap deterministic rules
// run first; only when neither rule set fires does it fall back to embedding
// similarity against the importance topics.
//
// Classification is a heuristic: it degrades to RelevanceLow on embedding
// failure instead of propagating the error.
type Classifier struct {
	embedder Embedder

	topicMu   sync.Mutex
	topicVecs [][]float32
}

// NewClassifier creates a classifier using the given embedder for the
// similarity fallback.
func NewClassifier(embedder Embedder) *Classifier {
	return &Classifier{embedder: embedder}
}

// Classify scores one exchange.
func (c *Classifier) Classify(ctx context.Context, userMessage, assistantResponse string) Relevance {
	combined := userMessage + " " + assistantResponse

	for _, p := range criticalPatterns {
		if p.MatchString(combined) {
			return RelevanceCritical
		}
	}

	bare := strings.TrimSpace(userMessage)
	for _, p := range ignorePatterns {
		if p.MatchString(bare) {
			return RelevanceIgnore
		}
	}

	maxSim, err := c.maxTopicSimilarity(ctx, combined)
	if err != nil {
		log.Printf("[CLASSIFY] embedding fallback failed, degrading to LOW: %v", err)
		return RelevanceLow
	}

	switch {
	case maxSim > 0.8:
		return RelevanceHigh
	case maxSim > 0.6:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

// maxTopicSimilarity embeds the text and returns its highest cosine
// similarity against the importance topic embeddings. Topic embeddings are
// computed lazily on first use and cached; a failed attempt is retried on
// the next call rather than poisoning the classifier.
func (c *Classifier) maxTopicSimilarity(ctx context.Context, text string) (float64, error) {
	topicVecs, err := c.topicEmbeddings(ctx)
	if err != nil {
		return 0, err
	}

	textVec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return 0, err
	}

	var maxSim float64
	for _, topicVec := range topicVecs {
		if sim := CosineSimilarity(textVec, topicVec); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim, nil
}

func (c *Classifier) topicEmbeddings(ctx context.Context) ([][]float32, error) {
	c.topicMu.Lock()
	defer c.topicMu.Unlock()
	if c.topicVecs != nil {
		return c.topicVecs, nil
	}
	vecs := make([][]float32, 0, len(importanceTopics))
	for _, topic := range importanceTopics {
		vec, err := c.embedder.Embed(ctx, topic)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, vec)
	}
	c.topicVecs = vecs
	return vecs, nil
}
