// Package knowledge owns the persistent core of the retrieval engine:
// the document store, the per-user quota ledger, and the query log.
//
// All persistence goes through PostgreSQL with the pgvector extension.
// Vector similarity and full-text ranking are both evaluated inside the
// database; this package translates between Go types and SQL and
// enforces the store-boundary invariants:
//
//   - content_hash is unique per domain among active documents, so
//     re-ingesting identical content resolves to an update, never a
//     duplicate row
//   - searches never cross domain-ownership boundaries
//   - query vectors must match the deployment's fixed dimension
//   - quota reservation is a single atomic conditional increment
//
// Consumers (ingest, search) define their own narrow interfaces over
// Store, Ledger, and QueryLog; this package only returns the concrete
// types.
package knowledge
