package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jamolinav/ai-assist-attorney/internal/logger"
)

// Progress states, in the order a request normally walks them.
const (
	StateQueued           = "queued"
	StateObtainingCase    = "obtaining_case"
	StateGatheringContext = "gathering_context"
	StateCallingLLM       = "calling_llm"
	StateStreamingAnswer  = "streaming_answer"
	StateDone             = "done"
	StateError            = "error"
)

const (
	keyPrefix = "assist:progress:"
	ttl       = 10 * time.Minute
)

// Record is the current state of one tracked operation.
type Record struct {
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
	Answer string `json:"answer,omitempty"`
}

// Store tracks short-lived operation progress. Writes are best-effort:
// a progress update must never fail the operation it describes.
type Store interface {
	Set(ctx context.Context, key string, rec Record)
	Get(ctx context.Context, key string) Record
}

// RedisStore keeps records in Redis with a sliding 10 minute TTL.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Set(ctx context.Context, key string, rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		logger.Error("failed to marshal progress record", "key", key, "error", err)
		return
	}
	if err := s.rdb.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		logger.Warn("failed to write progress record", "key", key, "error", err)
	}
}

// Get returns the stored record, or an error record when the key is
// missing or expired. Clients poll this; they never see a Redis error.
func (s *RedisStore) Get(ctx context.Context, key string) Record {
	data, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		return Record{State: StateError, Detail: "unknown key"}
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		logger.Warn("corrupt progress record", "key", key, "error", err)
		return Record{State: StateError, Detail: "unknown key"}
	}
	return rec
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record)}
}

func (s *MemoryStore) Set(_ context.Context, key string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[key] = rec
}

func (s *MemoryStore) Get(_ context.Context, key string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[key]; ok {
		return rec
	}
	return Record{State: StateError, Detail: "unknown key"}
}
