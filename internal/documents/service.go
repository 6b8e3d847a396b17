package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// MaxDocumentSize bounds a single upload (25MB).
const MaxDocumentSize = 25 * 1024 * 1024

// ErrTooLarge indicates the upload exceeds MaxDocumentSize.
var ErrTooLarge = errors.New("documents: file too large")

// Service coordinates object storage and metadata. The blob write happens
// first; if the metadata insert then fails, the orphaned object is removed
// best-effort so the bucket does not accumulate untracked files.
type Service struct {
	repo   MetadataRepo
	store  ObjectStore
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo MetadataRepo, store ObjectStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, store: store, logger: logger}
}

// UploadInput describes one incoming file.
type UploadInput struct {
	OrganizationID uuid.UUID
	UploadedBy     uuid.UUID
	FileName       string
	ContentType    string
	SizeBytes      int64
	Body           io.Reader
}

// Upload streams the file to the vault and records its metadata.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Document, error) {
	if in.FileName == "" {
		return Document{}, fmt.Errorf("documents: file name required")
	}
	if in.SizeBytes > MaxDocumentSize {
		return Document{}, ErrTooLarge
	}
	if in.ContentType == "" {
		in.ContentType = "application/octet-stream"
	}

	doc := Document{
		ID:             uuid.New(),
		OrganizationID: in.OrganizationID,
		ObjectKey:      ObjectKey(in.OrganizationID, in.FileName),
		FileName:       in.FileName,
		ContentType:    in.ContentType,
		SizeBytes:      in.SizeBytes,
		UploadedBy:     in.UploadedBy,
	}

	if err := s.store.Upload(ctx, doc.ObjectKey, doc.ContentType, in.Body); err != nil {
		return Document{}, err
	}

	stored, err := s.repo.Insert(ctx, doc)
	if err != nil {
		if delErr := s.store.Delete(ctx, doc.ObjectKey); delErr != nil {
			s.logger.Warn("orphaned document object left in bucket",
				slog.String("key", doc.ObjectKey), slog.Any("error", delErr))
		}
		return Document{}, err
	}
	return stored, nil
}

// List returns an organization's documents.
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]Document, error) {
	return s.repo.ListByOrganization(ctx, orgID)
}

// DownloadURL returns a presigned GET URL for the document.
func (s *Service) DownloadURL(ctx context.Context, orgID, docID uuid.UUID) (Document, string, error) {
	doc, err := s.repo.ByID(ctx, orgID, docID)
	if err != nil {
		return Document{}, "", err
	}
	url, err := s.store.PresignDownload(ctx, doc.ObjectKey)
	if err != nil {
		return Document{}, "", err
	}
	return doc, url, nil
}

// Delete removes the document's metadata and object. Metadata goes first:
// losing the row makes the document invisible even if the object delete
// then fails and leaves a stray blob.
func (s *Service) Delete(ctx context.Context, orgID, docID uuid.UUID) error {
	doc, err := s.repo.ByID(ctx, orgID, docID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, orgID, docID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.ObjectKey); err != nil {
		s.logger.Warn("stray document object left in bucket",
			slog.String("key", doc.ObjectKey), slog.Any("error", err))
	}
	return nil
}
