// Package search answers queries over stored knowledge.
//
// The hybrid searcher fans a query out to vector similarity and
// full-text ranking concurrently, normalizes both score sets, and
// blends them into one ranking. Semantic search is best effort; when
// the embedding provider or the vector path fails, results degrade to
// lexical-only rather than failing the request.
package search
