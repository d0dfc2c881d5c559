package coordination

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHash is an in-memory stand-in for the Redis hash commands used here.
type fakeHash struct {
	mu     sync.Mutex
	fields map[string]string
}

func newFakeHash() *fakeHash {
	return &fakeHash{fields: make(map[string]string)}
}

func (f *fakeHash) HSet(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	var added int64
	for i := 0; i+1 < len(values); i += 2 {
		field := values[i].(string)
		var val string
		switch v := values[i+1].(type) {
		case []byte:
			val = string(v)
		case string:
			val = v
		}
		if _, ok := f.fields[field]; !ok {
			added++
		}
		f.fields[field] = val
	}
	return goredis.NewIntResult(added, nil)
}

func (f *fakeHash) HDel(ctx context.Context, key string, fields ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	var removed int64
	for _, field := range fields {
		if _, ok := f.fields[field]; ok {
			delete(f.fields, field)
			removed++
		}
	}
	return goredis.NewIntResult(removed, nil)
}

func (f *fakeHash) HGetAll(ctx context.Context, key string) *goredis.MapStringStringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]string, len(f.fields))
	for k, v := range f.fields {
		out[k] = v
	}
	return goredis.NewMapStringStringResult(out, nil)
}

func (f *fakeHash) snapshot() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.fields))
	for k, v := range f.fields {
		out[k] = v
	}
	return out
}

func TestProcessRegistry_RegisterAndUnregister(t *testing.T) {
	hash := newFakeHash()
	clock := clockwork.NewFakeClock()
	reg := NewProcessRegistry(hash, "proc-1", 30*time.Second, "v1.0.0", clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Start(ctx)
		close(done)
	}()

	// Registered immediately, before the first tick.
	require.Eventually(t, func() bool {
		_, ok := hash.snapshot()["proc-1"]
		return ok
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return on cancellation")
	}

	_, ok := hash.snapshot()["proc-1"]
	assert.False(t, ok, "graceful shutdown removes the registration")
}

func TestProcessRegistry_ActiveProcessesSkipsStale(t *testing.T) {
	hash := newFakeHash()
	clock := clockwork.NewFakeClock()

	fresh := NewProcessRegistry(hash, "proc-fresh", 30*time.Second, "v1", clock)
	stale := NewProcessRegistry(hash, "proc-stale", 30*time.Second, "v1", clock)

	stale.register(context.Background())
	clock.Advance(2 * time.Minute)
	fresh.register(context.Background())

	active, err := fresh.ActiveProcesses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"proc-fresh"}, active)
}

func TestProcessRegistry_ActiveProcessesSkipsGarbage(t *testing.T) {
	hash := newFakeHash()
	clock := clockwork.NewFakeClock()
	hash.HSet(context.Background(), processesKey, "broken", "not-json")

	reg := NewProcessRegistry(hash, "proc-1", 30*time.Second, "v1", clock)
	reg.register(context.Background())

	active, err := reg.ActiveProcesses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"proc-1"}, active)
}
