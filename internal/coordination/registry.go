// Package coordination tracks which livewire processes are alive, for
// diagnostics. Each process heartbeats into a shared Redis hash; peers with
// no heartbeat for over a minute are treated as gone.
package coordination

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const (
	processesKey = "livewire:processes"
	// A process without a heartbeat for this long is considered gone.
	staleAfter = 60 * time.Second
)

// Client is the narrow Redis surface the registry needs.
type Client interface {
	HSet(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *goredis.IntCmd
	HGetAll(ctx context.Context, key string) *goredis.MapStringStringCmd
}

// ProcessRegistry announces this process to its peers through a shared Redis
// hash. Strictly diagnostic: routing never consults it, because delivery
// decisions are made locally on every process.
type ProcessRegistry struct {
	rdb       Client
	processID string
	heartbeat time.Duration
	version   string
	clock     clockwork.Clock
}

// ProcessInfo holds metadata about one registered process.
type ProcessInfo struct {
	ProcessID string `json:"process_id"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

func NewProcessRegistry(rdb Client, processID string, heartbeat time.Duration, version string, clock clockwork.Clock) *ProcessRegistry {
	return &ProcessRegistry{
		rdb:       rdb,
		processID: processID,
		heartbeat: heartbeat,
		version:   version,
		clock:     clock,
	}
}

// Start registers immediately, then refreshes the registration on the
// heartbeat interval. Blocks until ctx is cancelled, then unregisters.
func (r *ProcessRegistry) Start(ctx context.Context) {
	r.register(ctx)

	ticker := r.clock.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.register(ctx)
		case <-ctx.Done():
			r.unregister()
			return
		}
	}
}

func (r *ProcessRegistry) register(ctx context.Context) {
	info := ProcessInfo{
		ProcessID: r.processID,
		Timestamp: r.clock.Now().Unix(),
		Version:   r.version,
	}

	data, err := json.Marshal(info)
	if err != nil {
		return
	}

	r.rdb.HSet(ctx, processesKey, r.processID, data)
}

// unregister removes this process during graceful shutdown. A crashed
// process skips this and ages out via staleAfter instead.
func (r *ProcessRegistry) unregister() {
	ctx := context.Background()
	r.rdb.HDel(ctx, processesKey, r.processID)
}

// ActiveProcesses returns the IDs of processes with a fresh heartbeat.
func (r *ProcessRegistry) ActiveProcesses(ctx context.Context) ([]string, error) {
	entries, err := r.rdb.HGetAll(ctx, processesKey).Result()
	if err != nil {
		return nil, err
	}

	active := []string{}
	now := r.clock.Now().Unix()

	for processID, data := range entries {
		var info ProcessInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}

		if now-info.Timestamp < int64(staleAfter/time.Second) {
			active = append(active, processID)
		}
	}

	return active, nil
}
