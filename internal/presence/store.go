package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/pscheid92/livewire/internal/metrics"
)

const batchParallelism = 8

// Client is the narrow Redis surface the store needs.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
}

// Record is the value stored under the presence key. ProcessID is diagnostic
// attribution only and never drives routing.
type Record struct {
	UserID       string    `json:"user_id"`
	ProcessID    string    `json:"process_id"`
	ConnectionID string    `json:"connection_id"`
	ConnectedAt  time.Time `json:"connected_at"`
}

// Store reads and writes shared presence state. All round trips are bounded
// by the configured timeout; reads fail open to "offline" instead of hanging
// or raising.
type Store struct {
	rdb       Client
	processID string
	ttl       time.Duration
	timeout   time.Duration
	clock     clockwork.Clock
}

func NewStore(rdb Client, processID string, ttl, timeout time.Duration, clock clockwork.Clock) *Store {
	return &Store{
		rdb:       rdb,
		processID: processID,
		ttl:       ttl,
		timeout:   timeout,
		clock:     clock,
	}
}

func connKey(userID string) string   { return "presence:conn:" + userID }
func onlineKey(userID string) string { return "presence:online:" + userID }

// MarkOnline writes the presence record and the online marker with the shared
// TTL, overwriting any existing entry. Overwriting handles the
// reconnect-without-clean-disconnect case.
func (s *Store) MarkOnline(ctx context.Context, userID string, connID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record := Record{
		UserID:       userID,
		ProcessID:    s.processID,
		ConnectionID: connID.String(),
		ConnectedAt:  s.clock.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal presence record: %w", err)
	}

	if err := s.rdb.Set(ctx, connKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write presence record: %w", err)
	}
	if err := s.rdb.Set(ctx, onlineKey(userID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("write online marker: %w", err)
	}
	return nil
}

// MarkOffline deletes both keys. Deleting already-expired keys is a no-op.
func (s *Store) MarkOffline(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.rdb.Del(ctx, connKey(userID), onlineKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete presence keys: %w", err)
	}
	return nil
}

// IsOnline reads the online marker. If the store is unreachable the answer
// degrades to "appears offline" rather than raising: availability over
// accuracy.
func (s *Store) IsOnline(ctx context.Context, userID string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.rdb.Exists(ctx, onlineKey(userID)).Result()
	if err != nil {
		metrics.PresenceFailOpen.Inc()
		slog.Debug("Presence read failed, answering offline", "user_id", userID, "error", err)
		return false
	}
	return n > 0
}

// IsOnlineBatch answers presence for a list of users in one call, so
// UI-facing callers are not forced into one round trip per user. Lookups run
// in parallel with bounded concurrency; duplicate IDs collapse to one lookup.
func (s *Store) IsOnlineBatch(ctx context.Context, userIDs []string) map[string]bool {
	result := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallelism)

	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		g.Go(func() error {
			online := s.IsOnline(gctx, userID)
			mu.Lock()
			result[userID] = online
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return result
}
