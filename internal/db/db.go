// Package db stores agent output in PostgreSQL.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/propoto-agents/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*DB)(nil)

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SaveKnowledge implements store.Store.
func (db *DB) SaveKnowledge(ctx context.Context, k store.Knowledge) (string, error) {
	entities := k.Entities
	if entities == nil {
		entities = []store.Entity{}
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entities: %w", err)
	}

	id := uuid.New()
	_, err = db.pool.Exec(ctx,
		`INSERT INTO knowledge (id, url, summary, entities, relevance_score)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, k.URL, k.Summary, entitiesJSON, k.RelevanceScore,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save knowledge for %s: %w", k.URL, err)
	}
	return id.String(), nil
}

// SaveLead implements store.Store.
func (db *DB) SaveLead(ctx context.Context, l store.Lead) (string, error) {
	id := uuid.New()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO leads (id, company_name, website, description, score, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, l.CompanyName, nullable(l.Website), l.Description, l.Score, leadStatus(l.Status),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save lead %s: %w", l.CompanyName, err)
	}
	return id.String(), nil
}

// SaveProposal implements store.Store.
func (db *DB) SaveProposal(ctx context.Context, p store.Proposal) (string, error) {
	content := p.Content
	if len(content) == 0 {
		content = json.RawMessage("{}")
	}

	id := uuid.New()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO proposals (id, prospect_name, prospect_url, template, model, fallback_model,
		                        deep_scrape, presentation_url, content)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, p.ProspectName, p.ProspectURL, p.Template, p.Model, nullable(p.FallbackModel),
		p.DeepScrape, nullable(p.PresentationURL), []byte(content),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save proposal for %s: %w", p.ProspectName, err)
	}
	return id.String(), nil
}

// StoredLead is a lead row.
type StoredLead struct {
	ID uuid.UUID `json:"id"`
	store.Lead
	CreatedAt time.Time `json:"created_at"`
}

// TopLeads returns the highest scoring leads at or above minScore.
func (db *DB) TopLeads(ctx context.Context, minScore, limit int) ([]StoredLead, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, company_name, COALESCE(website, ''), description, score, status, created_at
		 FROM leads WHERE score >= $1
		 ORDER BY score DESC, created_at DESC
		 LIMIT $2`,
		minScore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []StoredLead
	for rows.Next() {
		var l StoredLead
		if err := rows.Scan(&l.ID, &l.CompanyName, &l.Website, &l.Description, &l.Score, &l.Status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// ProposalContent returns the stored proposal body, or nil when id is unknown.
func (db *DB) ProposalContent(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
	var content []byte
	err := db.pool.QueryRow(ctx, `SELECT content FROM proposals WHERE id = $1`, id).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get proposal %s: %w", id, err)
	}
	return content, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func leadStatus(s string) string {
	if s == "" {
		return "new"
	}
	return s
}
