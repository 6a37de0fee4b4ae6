// Package session holds the durable record of one pipeline run and the
// store that persists it. The on-disk copy is the source of truth: the
// in-memory Session is a cache that must be reloaded after any resume, and
// every persist goes through the atomic, schema-validated fsstore path.
//
// A session is always exactly as far along as its checkpoint list proves.
// Checkpoints are append-only, one per step, written strictly in pipeline
// order; the store rejects anything else.
package session
