// Package embedding wraps the external embedding provider behind a
// batching, pacing, and retry layer.
//
// The Provider interface is the narrow seam to the outside world: a
// positionally-aligned texts-in, vectors-out call. Two implementations
// exist, Gemini (via Genkit) and OpenAI. Client adds the operational
// policy on top:
//
//   - batches are bounded by MaxBatchSize to limit request size and the
//     blast radius of a single failure
//   - one shared pacing gate enforces a minimum gap between provider
//     calls; ingestion and query embedding share it
//   - rate-limit responses are retried with capped exponential backoff
//     and jitter; the provider's retry-after hint is honored when given
//   - every returned vector is checked against the deployment's fixed
//     dimension and rejected on mismatch, never truncated or padded
package embedding
