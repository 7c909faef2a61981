// Package ingest turns raw source items into stored, embedded knowledge
// documents.
//
// Each item moves through a fixed pipeline: canonicalize, hash, dedup
// lookup, quota reservation, store with a null embedding, embed, attach
// the vector. The document write always lands before the embedding call
// so content is lexically searchable even when the provider is down;
// a later retry pass picks up documents left pending.
package ingest
