// Package pipeline runs the fixed five-step document pipeline over a
// session. The orchestrator skips steps the session already holds
// checkpoints for, persists a checkpoint only after a step's outputs are
// durable, and maps failures onto the session status machine: errors fail
// the session, deadline expiry pauses it.
package pipeline
