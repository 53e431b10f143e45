// Package postgres implements a durable leadstore.Store backed by
// PostgreSQL.
//
// When an [Embedder] is supplied, each lead's project and notes text is
// embedded at append time and stored in a pgvector column, enabling
// [Store.SimilarLeads]: "have we already talked to someone about a job like
// this" lookups for the sales team. Without an embedder the store degrades
// to plain relational persistence.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/voxlead/voxlead/pkg/leadstore"
)

// Embedder turns lead text into a fixed-dimension embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// schemaTemplate is the leads DDL. %d is the embedding dimension.
const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS leads (
    id             UUID PRIMARY KEY,
    name           TEXT NOT NULL,
    phone          TEXT NOT NULL,
    email          TEXT NOT NULL,
    project        TEXT NOT NULL,
    budget         TEXT NOT NULL DEFAULT '',
    urgency        TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT '',
    tags           TEXT[] NOT NULL DEFAULT '{}',
    language       TEXT NOT NULL DEFAULT '',
    source_tag     TEXT NOT NULL,
    lifetime_value DOUBLE PRECISION NOT NULL DEFAULT 0,
    status         TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    embedding      vector(%d)
);
CREATE INDEX IF NOT EXISTS idx_leads_created ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_leads_embedding ON leads
    USING hnsw (embedding vector_cosine_ops);
`

// SimilarLead is one nearest-neighbour hit from [Store.SimilarLeads].
type SimilarLead struct {
	Lead leadstore.Lead

	// Similarity is cosine similarity in [0, 1], higher is closer.
	Similarity float64
}

// Option configures a Store.
type Option func(*Store)

// WithEmbedder enables embedding-based similarity search. dim must match the
// embedder's output dimension and the migrated schema.
func WithEmbedder(e Embedder) Option {
	return func(s *Store) { s.embedder = e }
}

// Store is a PostgreSQL-backed [leadstore.Store]. All operations are safe
// for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
	dim      int
}

// NewStore connects to the database at dsn, registers pgvector types on
// every connection, and runs the schema migration. embeddingDimensions must
// match the embedder's output (e.g., 1536 for OpenAI text-embedding-3-small);
// it is fixed at first migration.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int, opts ...Option) (*Store, error) {
	if embeddingDimensions <= 0 {
		return nil, errors.New("leadstore postgres: embeddingDimensions must be positive")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("leadstore postgres: parse dsn: %w", err)
	}

	// Vector columns scan into and insert from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("leadstore postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("leadstore postgres: ping: %w", err)
	}

	s := &Store{pool: pool, dim: embeddingDimensions}
	for _, o := range opts {
		o(s)
	}

	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies the leads DDL.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(schemaTemplate, s.dim)); err != nil {
		return fmt.Errorf("leadstore postgres: migrate: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Append implements [leadstore.Store]. When an embedder is configured the
// lead's project and notes text is embedded inline; an embedding failure
// does not fail the commit, the lead is stored without a vector.
func (s *Store) Append(ctx context.Context, lead *leadstore.Lead) error {
	if lead == nil {
		return errors.New("leadstore postgres: nil lead")
	}

	var vec *pgvector.Vector
	if s.embedder != nil {
		if text := embeddingText(lead); text != "" {
			emb, err := s.embedder.Embed(ctx, text)
			if err == nil && len(emb) == s.dim {
				v := pgvector.NewVector(emb)
				vec = &v
			}
		}
	}

	tags := lead.Tags
	if tags == nil {
		tags = []string{}
	}

	const query = `
		INSERT INTO leads (
			id, name, phone, email, project, budget, urgency, notes, tags,
			language, source_tag, lifetime_value, status, created_at, embedding
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	_, err := s.pool.Exec(ctx, query,
		lead.ID, lead.Name, lead.Phone, lead.Email, lead.Project,
		lead.Budget, lead.Urgency, lead.Notes, tags, lead.Language,
		lead.SourceTag, lead.LifetimeValue, lead.Status, lead.CreatedAt, vec,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("leadstore postgres: lead %s already committed", lead.ID)
		}
		return fmt.Errorf("leadstore postgres: append: %w", err)
	}
	return nil
}

// SimilarLeads returns up to limit previously committed leads whose project
// and notes text is semantically closest to query, ordered by similarity.
// Requires an embedder; leads stored without an embedding are not matched.
func (s *Store) SimilarLeads(ctx context.Context, query string, limit int) ([]SimilarLead, error) {
	if s.embedder == nil {
		return nil, errors.New("leadstore postgres: similarity search requires an embedder")
	}
	if limit <= 0 {
		limit = 5
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("leadstore postgres: embed query: %w", err)
	}
	queryVec := pgvector.NewVector(emb)

	const sql = `
		SELECT id, name, phone, email, project, budget, urgency, notes,
		       tags, language, source_tag, lifetime_value, status, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM leads
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := s.pool.Query(ctx, sql, queryVec, limit)
	if err != nil {
		return nil, fmt.Errorf("leadstore postgres: similar leads: %w", err)
	}
	defer rows.Close()

	var out []SimilarLead
	for rows.Next() {
		var sl SimilarLead
		l := &sl.Lead
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Phone, &l.Email, &l.Project,
			&l.Budget, &l.Urgency, &l.Notes, &l.Tags, &l.Language,
			&l.SourceTag, &l.LifetimeValue, &l.Status, &l.CreatedAt,
			&sl.Similarity,
		); err != nil {
			return nil, fmt.Errorf("leadstore postgres: similar leads scan: %w", err)
		}
		out = append(out, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leadstore postgres: similar leads: %w", err)
	}
	return out, nil
}

// embeddingText joins the fields worth matching future leads against.
func embeddingText(l *leadstore.Lead) string {
	parts := make([]string, 0, 2)
	if l.Project != "" {
		parts = append(parts, l.Project)
	}
	if l.Notes != "" {
		parts = append(parts, l.Notes)
	}
	return strings.Join(parts, "\n")
}

// isDuplicateKeyError checks whether a PostgreSQL error is a
// unique-violation (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// Compile-time interface check.
var _ leadstore.Store = (*Store)(nil)
