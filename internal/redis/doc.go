// Package redis owns the shared go-redis client used by the presence store,
// the event bus, and the process registry. All commands pass through the
// metrics and circuit breaker hooks installed here.
package redis
