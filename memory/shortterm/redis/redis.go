// Package redis provides a Redis-backed short-term context store, for
// deployments where the assistant process restarts must not lose the
// current session. The layout mirrors the classic pattern: one JSON value
// per interaction with a TTL, plus a per-user sorted set (scored by
// relevance) acting as the session index.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mnemohq/mnemo/memory"
)

// DefaultTTL matches the in-process store's 24-hour window.
const DefaultTTL = 24 * time.Hour

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Namespace prefixes every key. Default: "mnemo".
	Namespace string

	// TTL is the interaction time-to-live. Default: DefaultTTL.
	TTL time.Duration
}

// Store is a ShortTermStore on a single Redis instance.
type Store struct {
	client    *goredis.Client
	namespace string
	ttl       time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "mnemo"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client, namespace: cfg.Namespace, ttl: cfg.TTL}, nil
}

// NewFromClient wraps an existing client; used by tests running against
// miniredis.
func NewFromClient(client *goredis.Client, namespace string, ttl time.Duration) *Store {
	if namespace == "" {
		namespace = "mnemo"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, namespace: namespace, ttl: ttl}
}

func (s *Store) indexKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:interactions", s.namespace, userID)
}

func (s *Store) interactionKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:interaction:%s", s.namespace, userID, uuid.New().String())
}

// Add stores the interaction under its own TTL'd key and registers it in
// the user's session index, refreshing the index TTL alongside.
func (s *Store) Add(ctx context.Context, it memory.Interaction) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}

	key := s.interactionKey(it.UserID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(it.UserID), goredis.Z{Score: float64(it.Relevance), Member: key})
	pipe.Expire(ctx, s.indexKey(it.UserID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis add: %w", err)
	}
	return nil
}

// All returns every live interaction for the user. Index members whose
// value key already expired are pruned as they are encountered.
func (s *Store) All(ctx context.Context, userID string) ([]memory.Interaction, error) {
	interactions, _, err := s.load(ctx, userID)
	return interactions, err
}

// Recent returns up to limit live interactions, most recent first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]memory.Interaction, error) {
	interactions, _, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(interactions, func(i, j int) bool {
		return interactions[i].Timestamp.After(interactions[j].Timestamp)
	})
	if limit > 0 && len(interactions) > limit {
		interactions = interactions[:limit]
	}
	return interactions, nil
}

// Drain reads every live interaction and deletes the user's session state.
// The read and the delete run as separate commands; callers (the memory
// System) hold a per-user lock, which is what makes the pair atomic with
// respect to concurrent Add calls for the same user.
func (s *Store) Drain(ctx context.Context, userID string) ([]memory.Interaction, error) {
	interactions, keys, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	pipe := s.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, s.indexKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis drain: %w", err)
	}
	return interactions, nil
}

// Close releases the client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// load fetches the index members and their values, dropping entries whose
// value key has expired out from under the index.
func (s *Store) load(ctx context.Context, userID string) ([]memory.Interaction, []string, error) {
	keys, err := s.client.ZRange(ctx, s.indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis zrange: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis mget: %w", err)
	}

	interactions := make([]memory.Interaction, 0, len(values))
	live := make([]string, 0, len(keys))
	var stale []interface{}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, keys[i])
			continue
		}
		var it memory.Interaction
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			stale = append(stale, keys[i])
			continue
		}
		interactions = append(interactions, it)
		live = append(live, keys[i])
	}

	if len(stale) > 0 {
		// Expired values leave dangling index members; sweep them.
		s.client.ZRem(ctx, s.indexKey(userID), stale...)
	}
	return interactions, live, nil
}
