// Package provider abstracts the generation backends that service pipeline
// steps. It defines the Invoker contract, a transient/permanent error
// taxonomy, and a Selector that walks a configured provider priority order
// with bounded retries, exponential backoff, and automatic fallback.
package provider
