// Package presence is the adapter for the shared, TTL-based presence store.
// Each process writes two independently expiring keys per connected user: a
// presence record attributing the connection to a process, and an online
// marker answering "is user X online" without parsing the record. A
// non-expired record does not guarantee the connection is alive; after a
// crash the record lies for at most one TTL.
package presence
