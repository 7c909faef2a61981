package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mnemos/mnemos/internal/knowledge"
)

// Store is the slice of the knowledge store the pipeline writes through.
type Store interface {
	FindByHash(ctx context.Context, domainID uuid.UUID, contentHash string) (*knowledge.Document, error)
	Upsert(ctx context.Context, doc *knowledge.Document) (*knowledge.Document, error)
	AttachEmbedding(ctx context.Context, id uuid.UUID, vec []float32, model string) error
	ListPending(ctx context.Context, limit int) ([]knowledge.Document, error)
}

// Quota reserves capacity before any guarded action runs.
type Quota interface {
	Reserve(ctx context.Context, userID string, resource knowledge.Resource) (*knowledge.QuotaRecord, error)
}

// Embedder produces vectors for document content.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Item is one piece of source content bound for a domain.
type Item struct {
	DomainID    uuid.UUID
	OwnerUserID string
	Title       string
	Content     string
	Tags        []string
}

// Status is the terminal outcome of one item's pipeline run.
type Status string

const (
	// StatusStored means a net-new document was written with its embedding.
	StatusStored Status = "stored"
	// StatusUpdated means an existing document was refreshed in place.
	StatusUpdated Status = "updated"
	// StatusSkipped means an identical active document already existed.
	StatusSkipped Status = "skipped"
	// StatusPending means the document was written but embedding failed;
	// a retry pass will attach the vector later.
	StatusPending Status = "pending"
	// StatusRejected means quota or validation denied the item before
	// any write happened.
	StatusRejected Status = "rejected"
)

// Result reports what happened to one item. Document is nil only when
// Status is StatusRejected. Err carries the embedding failure for
// StatusPending and the denial for StatusRejected.
type Result struct {
	Status   Status
	Document *knowledge.Document
	Err      error
}

// Config tunes the pipeline.
type Config struct {
	// Model is recorded on each document alongside its embedding.
	Model string

	// Workers bounds batch-level parallelism. Defaults to 4.
	Workers int

	// PendingBatchLimit caps how many pending documents one retry pass
	// picks up. Defaults to 50.
	PendingBatchLimit int
}

// Ingestor drives items through the ingestion pipeline.
type Ingestor struct {
	store    Store
	quota    Quota
	embedder Embedder
	cfg      Config
	logger   *slog.Logger
}

// New wires an Ingestor. All three collaborators are required.
func New(store Store, quota Quota, embedder Embedder, cfg Config, logger *slog.Logger) (*Ingestor, error) {
	if store == nil || quota == nil || embedder == nil {
		return nil, errors.New("ingest: store, quota, and embedder are required")
	}
	if cfg.Model == "" {
		return nil, errors.New("ingest: embedding model name is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PendingBatchLimit <= 0 {
		cfg.PendingBatchLimit = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: store, quota: quota, embedder: embedder, cfg: cfg, logger: logger}, nil
}

// Ingest runs one item through the full pipeline.
//
// Duplicates with identical content are skipped without consuming
// quota. Content changes to an existing document are free updates.
// Only net-new documents reserve document quota, and the reservation
// happens before the embedding call so a slow provider never holds a
// quota row hostage. An embedding failure leaves the document stored
// without a vector rather than rolling back the write.
func (in *Ingestor) Ingest(ctx context.Context, item Item) (*Result, error) {
	if err := validateItem(item); err != nil {
		return &Result{Status: StatusRejected, Err: err}, err
	}

	content := strings.TrimSpace(item.Content)
	hash := knowledge.HashContent(content)

	existing, err := in.store.FindByHash(ctx, item.DomainID, hash)
	switch {
	case err == nil:
		return in.refresh(ctx, existing, item, content)
	case errors.Is(err, knowledge.ErrNotFound):
		// Net-new document, fall through.
	default:
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	if _, err := in.quota.Reserve(ctx, item.OwnerUserID, knowledge.ResourceDocument); err != nil {
		return &Result{Status: StatusRejected, Err: err}, err
	}

	doc, err := in.store.Upsert(ctx, &knowledge.Document{
		DomainID:    item.DomainID,
		Title:       strings.TrimSpace(item.Title),
		Content:     content,
		Tags:        item.Tags,
		ContentHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("storing document: %w", err)
	}

	if err := in.embed(ctx, doc); err != nil {
		in.logger.Warn("embedding failed, document stored pending",
			"document_id", doc.ID, "error", err)
		return &Result{Status: StatusPending, Document: doc, Err: err}, nil
	}
	return &Result{Status: StatusStored, Document: doc}, nil
}

// refresh handles a dedup hit: skip when nothing changed, otherwise
// update in place without touching quota.
func (in *Ingestor) refresh(ctx context.Context, existing *knowledge.Document, item Item, content string) (*Result, error) {
	if existing.Content == content {
		in.logger.Debug("duplicate content skipped",
			"document_id", existing.ID, "domain_id", item.DomainID)
		return &Result{Status: StatusSkipped, Document: existing}, nil
	}

	doc, err := in.store.Upsert(ctx, &knowledge.Document{
		DomainID:    item.DomainID,
		Title:       strings.TrimSpace(item.Title),
		Content:     content,
		Tags:        item.Tags,
		ContentHash: existing.ContentHash,
	})
	if err != nil {
		return nil, fmt.Errorf("updating document: %w", err)
	}

	if doc.Pending() {
		if err := in.embed(ctx, doc); err != nil {
			in.logger.Warn("re-embedding failed, document pending",
				"document_id", doc.ID, "error", err)
			return &Result{Status: StatusPending, Document: doc, Err: err}, nil
		}
	}
	return &Result{Status: StatusUpdated, Document: doc}, nil
}

// embed produces and attaches the vector for doc, mutating doc on
// success so callers see the final state.
func (in *Ingestor) embed(ctx context.Context, doc *knowledge.Document) error {
	vec, err := in.embedder.EmbedOne(ctx, doc.Content)
	if err != nil {
		return err
	}
	if err := in.store.AttachEmbedding(ctx, doc.ID, vec, in.cfg.Model); err != nil {
		return fmt.Errorf("attaching embedding: %w", err)
	}
	doc.Embedding = vec
	doc.EmbeddingModel = in.cfg.Model
	return nil
}

// IngestBatch runs items through the pipeline with at most
// Config.Workers items in flight. Results align positionally with
// items. Per-item failures land in the matching Result rather than
// aborting the batch; the returned error is reserved for context
// cancellation.
func (in *Ingestor) IngestBatch(ctx context.Context, items []Item) ([]Result, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]Result, len(items))
	indexes := make(chan int)

	var wg sync.WaitGroup
	workers := min(in.cfg.Workers, len(items))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				res, err := in.Ingest(ctx, items[i])
				if res != nil {
					results[i] = *res
					continue
				}
				results[i] = Result{Status: StatusRejected, Err: err}
			}
		}()
	}

feed:
	for i := range items {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}

	in.logger.Info("batch ingested", "items", len(items), "workers", workers)
	return results, nil
}

// RetryPending embeds documents that were stored without a vector.
// The whole batch goes to the provider in one EmbedBatch call; attach
// failures for individual documents are logged and skipped so one bad
// row cannot starve the rest. Returns how many documents gained an
// embedding.
func (in *Ingestor) RetryPending(ctx context.Context) (int, error) {
	pending, err := in.store.ListPending(ctx, in.cfg.PendingBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("listing pending documents: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, doc := range pending {
		texts[i] = doc.Content
	}

	vectors, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d pending documents: %w", len(pending), err)
	}

	attached := 0
	for i, doc := range pending {
		if err := in.store.AttachEmbedding(ctx, doc.ID, vectors[i], in.cfg.Model); err != nil {
			in.logger.Warn("attach failed during retry pass",
				"document_id", doc.ID, "error", err)
			continue
		}
		attached++
	}

	in.logger.Info("retry pass complete", "pending", len(pending), "attached", attached)
	return attached, nil
}

func validateItem(item Item) error {
	if item.DomainID == uuid.Nil {
		return fmt.Errorf("%w: domain id is required", knowledge.ErrInvalidArgument)
	}
	if item.OwnerUserID == "" {
		return fmt.Errorf("%w: owner user id is required", knowledge.ErrInvalidArgument)
	}
	if strings.TrimSpace(item.Content) == "" {
		return fmt.Errorf("%w: content is empty", knowledge.ErrInvalidArgument)
	}
	return nil
}
