// Package fsstore provides the durable-write primitives for SpecForge.
// All engine state lands on the local filesystem through WriteAtomic,
// which guarantees a target file is either untouched or fully replaced
// with validated content, never partially written. The Codec layers a
// YAML encoding with struct validation on top, and round-trips every
// record through decode before it is committed so serialization bugs
// surface before they can corrupt state.
package fsstore
