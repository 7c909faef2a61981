package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnemos/mnemos/db"
	"github.com/mnemos/mnemos/internal/config"
	"github.com/mnemos/mnemos/internal/database"
	"github.com/mnemos/mnemos/internal/embedding"
	"github.com/mnemos/mnemos/internal/ingest"
	"github.com/mnemos/mnemos/internal/knowledge"
	"github.com/mnemos/mnemos/internal/log"
	"github.com/mnemos/mnemos/internal/search"
)

// app bundles the wired components a command needs. Construction runs
// migrations, opens the pool, and builds the embedding client for the
// configured provider.
type app struct {
	cfg      *config.Config
	logger   log.Logger
	pool     *pgxpool.Pool
	store    *knowledge.Store
	ledger   *knowledge.Ledger
	querylog *knowledge.QueryLog
	embedder *embedding.Client
	cleanup  func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, closePool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		closePool()
		return nil, err
	}

	embedder, err := embedding.NewClient(provider, embedding.Config{
		Dimension:    cfg.EmbeddingDimension,
		MaxBatchSize: cfg.EmbedBatchSize,
		PacingDelay:  cfg.PacingDelay(),
		MaxRetries:   cfg.EmbedMaxRetries,
	}, logger.With("component", "embedding"))
	if err != nil {
		closePool()
		return nil, err
	}

	defaults := knowledge.Limits{
		MaxDocuments:       cfg.MaxDocuments,
		MaxQueriesPerMonth: cfg.MaxQueriesPerMonth,
		MaxDomains:         cfg.MaxDomains,
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		store:    knowledge.NewStore(pool, cfg.EmbeddingDimension, logger.With("component", "store")),
		ledger:   knowledge.NewLedger(pool, defaults, logger.With("component", "quota")),
		querylog: knowledge.NewQueryLog(pool, logger.With("component", "querylog")),
		embedder: embedder,
		cleanup:  closePool,
	}, nil
}

func buildProvider(ctx context.Context, cfg *config.Config) (embedding.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return embedding.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), cfg.EmbedderModel, cfg.EmbeddingDimension), nil
	default:
		provider, err := embedding.NewGeminiProvider(ctx, cfg.EmbedderModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini provider: %w", err)
		}
		return provider, nil
	}
}

func (a *app) ingestor() (*ingest.Ingestor, error) {
	return ingest.New(a.store, a.ledger, a.embedder, ingest.Config{
		Model: a.cfg.EmbedderModel,
	}, a.logger.With("component", "ingest"))
}

func (a *app) searcher() (*search.Searcher, error) {
	return search.New(a.store, a.ledger, a.embedder, a.querylog, search.Config{
		SemanticWeight: a.cfg.SemanticWeight,
		LexicalWeight:  a.cfg.LexicalWeight,
		MinSimilarity:  a.cfg.MinSimilarity,
		Timeout:        a.cfg.SearchTimeout(),
	}, a.logger.With("component", "search"))
}

// userID resolves the acting user from the --user flag, MNEMOS_USER, or
// the OS user, in that order.
func userID() (string, error) {
	if flagUser != "" {
		return flagUser, nil
	}
	if env := os.Getenv("MNEMOS_USER"); env != "" {
		return env, nil
	}
	if osUser := os.Getenv("USER"); osUser != "" {
		return osUser, nil
	}
	return "", fmt.Errorf("cannot determine user id: pass --user or set MNEMOS_USER")
}
