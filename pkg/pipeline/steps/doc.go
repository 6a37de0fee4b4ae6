// Package steps provides the concrete implementations of the five pipeline
// steps: four generation steps that share a prompt-driven runner backed by
// the provider selector, and a local assembly step that stitches the
// generated artifacts into the final document. Every step writes its
// outputs atomically into its session step directory before returning.
package steps
