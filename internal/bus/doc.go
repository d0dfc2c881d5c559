// Package bus adapts the shared Redis Pub/Sub transport. Every process
// subscribes to the complete fixed channel set at startup and republishes
// locally-originated events to all processes, which each re-check their own
// registries; the bus itself carries no routing knowledge.
package bus
