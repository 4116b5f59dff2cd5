// Package gemini provides the generative model client used by the AI flows.
//
// The client wraps google.golang.org/genai and adds what the flows need on
// top of it:
//   - JSON generation with a response schema, checked with Conform
//   - Speech synthesis returning raw 16-bit PCM
//   - A concurrency semaphore shared by all callers
//   - Retries with exponential backoff for rate limiting and server errors
//   - Request statistics and Prometheus metrics
package gemini
