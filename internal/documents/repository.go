package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the document does not exist.
var ErrNotFound = errors.New("documents: not found")

// Document is the stored metadata for one uploaded file.
type Document struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	ObjectKey      string    `json:"object_key"`
	FileName       string    `json:"file_name"`
	ContentType    string    `json:"content_type"`
	SizeBytes      int64     `json:"size_bytes"`
	UploadedBy     uuid.UUID `json:"uploaded_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// MetadataRepo persists document metadata.
type MetadataRepo interface {
	Insert(ctx context.Context, doc Document) (Document, error)
	ByID(ctx context.Context, orgID, docID uuid.UUID) (Document, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]Document, error)
	Delete(ctx context.Context, orgID, docID uuid.UUID) error
}

// Repository implements MetadataRepo against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ MetadataRepo = (*Repository)(nil)

const docColumns = `id, organization_id, object_key, file_name, content_type, size_bytes, uploaded_by, created_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.OrganizationID, &d.ObjectKey, &d.FileName,
		&d.ContentType, &d.SizeBytes, &d.UploadedBy, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return d, nil
}

// Insert records an uploaded document.
func (r *Repository) Insert(ctx context.Context, doc Document) (Document, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO documents (id, organization_id, object_key, file_name, content_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+docColumns,
		doc.ID, doc.OrganizationID, doc.ObjectKey, doc.FileName, doc.ContentType, doc.SizeBytes, doc.UploadedBy)
	return scanDocument(row)
}

// ByID returns one document scoped to its owning organization.
func (r *Repository) ByID(ctx context.Context, orgID, docID uuid.UUID) (Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+docColumns+` FROM documents WHERE id = $1 AND organization_id = $2`, docID, orgID)
	return scanDocument(row)
}

// ListByOrganization lists an organization's documents, newest first.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+docColumns+` FROM documents WHERE organization_id = $1 ORDER BY created_at DESC, id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes a document row scoped to its owning organization.
func (r *Repository) Delete(ctx context.Context, orgID, docID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND organization_id = $2`, docID, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
