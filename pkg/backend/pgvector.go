package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/mikeboe/query-orchestrator/pkg/core"
	"github.com/mikeboe/query-orchestrator/pkg/database"
)

const (
	vectorChunkSize    = 1000
	vectorChunkOverlap = 200
)

// VectorBackend is a semantic search adapter over a pgvector table. It is
// also the natural write target: Index chunks, embeds, and stores documents.
type VectorBackend struct {
	db        *database.PostgresDB
	embedder  Embedder
	tableName string
}

// isValidTableName validates that a table name contains only safe characters
// to prevent SQL injection attacks
func isValidTableName(name string) bool {
	// Table names must start with a letter or underscore and be between
	// 1-63 chars (PostgreSQL limit)
	matched, _ := regexp.MatchString(`^[a-z_][a-zA-Z0-9_]{0,62}$`, name)
	return matched
}

// NewVectorBackend creates the pgvector adapter and ensures its schema.
func NewVectorBackend(ctx context.Context, db *database.PostgresDB, embedder Embedder, tableName string) (*VectorBackend, error) {
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid table name: must contain only alphanumeric characters and underscores, start with a letter or underscore, and be 1-63 characters long")
	}
	if err := db.EnsureVectorExtension(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure vector extension: %w", err)
	}
	if err := db.CreateDocumentsTable(ctx, tableName, embeddingDimension); err != nil {
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return &VectorBackend{
		db:        db,
		embedder:  embedder,
		tableName: tableName,
	}, nil
}

func (b *VectorBackend) ID() string { return "vector" }

func (b *VectorBackend) Capabilities() core.BackendCapabilities {
	return core.BackendCapabilities{
		SupportsScopeFilter: true,
		SupportsSemantic:    true,
		MaxResults:          50,
	}
}

// Search embeds the query and runs cosine similarity search. Each returned
// row is one chunk; callers dedup by URL so the best chunk per document wins.
func (b *VectorBackend) Search(ctx context.Context, query, scope string, maxResults int) ([]core.Result, error) {
	queryEmbedding, err := b.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	embedding := pgvector.NewVector(queryEmbedding)

	var sql string
	var args []interface{}
	if scope != "" {
		sql = fmt.Sprintf(`
			SELECT url, title, site, content, metadata, 1 - (embedding <=> $1) as similarity
			FROM %s
			WHERE site = $2
			ORDER BY embedding <=> $1
			LIMIT $3
		`, pgx.Identifier{b.tableName}.Sanitize())
		args = []interface{}{embedding, scope, maxResults}
	} else {
		sql = fmt.Sprintf(`
			SELECT url, title, site, content, metadata, 1 - (embedding <=> $1) as similarity
			FROM %s
			ORDER BY embedding <=> $1
			LIMIT $2
		`, pgx.Identifier{b.tableName}.Sanitize())
		args = []interface{}{embedding, maxResults}
	}

	rows, err := b.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var results []core.Result
	for rows.Next() {
		var r core.Result
		var metadataJSON []byte
		if err := rows.Scan(&r.URL, &r.Name, &r.Site, &r.Description, &metadataJSON, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &r.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// Scopes returns the distinct site labels present in the table.
func (b *VectorBackend) Scopes(ctx context.Context) ([]string, error) {
	sql := fmt.Sprintf(`SELECT DISTINCT site FROM %s WHERE site <> '' ORDER BY site`,
		pgx.Identifier{b.tableName}.Sanitize())

	rows, err := b.db.Pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query scopes: %w", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scopes = append(scopes, s)
	}
	return scopes, rows.Err()
}

// GetByURL returns the first stored chunk for the given document URL.
func (b *VectorBackend) GetByURL(ctx context.Context, url string) (*core.Result, error) {
	sql := fmt.Sprintf(`
		SELECT url, title, site, content, metadata
		FROM %s
		WHERE url = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, pgx.Identifier{b.tableName}.Sanitize())

	rows, err := b.db.Pool.Query(ctx, sql, url)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var r core.Result
	var metadataJSON []byte
	if err := rows.Scan(&r.URL, &r.Name, &r.Site, &r.Description, &metadataJSON); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &r.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	r.Score = 1.0
	return &r, nil
}

// Index splits the document into chunks, embeds each, and inserts them in a
// single batch. Previously indexed chunks for the same URL are replaced.
func (b *VectorBackend) Index(ctx context.Context, doc Document) error {
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(vectorChunkSize),
		textsplitter.WithChunkOverlap(vectorChunkOverlap),
	)
	chunks, err := ts.SplitText(doc.Content)
	if err != nil {
		return fmt.Errorf("failed to split document: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document has no content")
	}

	embeddings := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := b.embedder.EmbedText(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to embed chunk: %w", err)
		}
		embeddings = append(embeddings, vec)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	deleteSQL := fmt.Sprintf(`DELETE FROM %s WHERE url = $1`,
		pgx.Identifier{b.tableName}.Sanitize())
	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (url, title, site, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, pgx.Identifier{b.tableName}.Sanitize())

	batch := &pgx.Batch{}
	batch.Queue(deleteSQL, doc.URL)
	for i, chunk := range chunks {
		batch.Queue(insertSQL, doc.URL, doc.Title, doc.Site, chunk, metadataJSON, pgvector.NewVector(embeddings[i]))
	}

	br := b.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks)+1; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to write document chunk: %w", err)
		}
	}

	return nil
}
