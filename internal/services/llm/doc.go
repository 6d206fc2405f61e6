// Package llm wraps the OpenAI-compatible completion and embeddings API used
// for document generation and semantic indexing. The client retries transient
// failures with exponential backoff and honors Retry-After hints.
package llm
