package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeMetadataRepo struct {
	docs      map[uuid.UUID]Document
	insertErr error
}

func newFakeMetadataRepo() *fakeMetadataRepo {
	return &fakeMetadataRepo{docs: make(map[uuid.UUID]Document)}
}

func (r *fakeMetadataRepo) Insert(_ context.Context, doc Document) (Document, error) {
	if r.insertErr != nil {
		return Document{}, r.insertErr
	}
	r.docs[doc.ID] = doc
	return doc, nil
}

func (r *fakeMetadataRepo) ByID(_ context.Context, orgID, docID uuid.UUID) (Document, error) {
	doc, ok := r.docs[docID]
	if !ok || doc.OrganizationID != orgID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (r *fakeMetadataRepo) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]Document, error) {
	var out []Document
	for _, d := range r.docs {
		if d.OrganizationID == orgID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeMetadataRepo) Delete(_ context.Context, orgID, docID uuid.UUID) error {
	doc, ok := r.docs[docID]
	if !ok || doc.OrganizationID != orgID {
		return ErrNotFound
	}
	delete(r.docs, docID)
	return nil
}

type fakeObjectStore struct {
	objects   map[string]string
	deleteErr error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string]string)}
}

func (s *fakeObjectStore) Upload(_ context.Context, key, _ string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[key] = string(data)
	return nil
}

func (s *fakeObjectStore) PresignDownload(_ context.Context, key string) (string, error) {
	if _, ok := s.objects[key]; !ok {
		return "", errors.New("object missing")
	}
	return "https://vault.example.com/" + key, nil
}

func (s *fakeObjectStore) Delete(_ context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func TestUploadStoresBlobAndMetadata(t *testing.T) {
	repo := newFakeMetadataRepo()
	store := newFakeObjectStore()
	svc := NewService(repo, store, nil)
	orgID := uuid.New()

	doc, err := svc.Upload(context.Background(), UploadInput{
		OrganizationID: orgID,
		UploadedBy:     uuid.New(),
		FileName:       "lease.pdf",
		ContentType:    "application/pdf",
		SizeBytes:      4,
		Body:           strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	require.Equal(t, "%PDF", store.objects[doc.ObjectKey])
	require.Contains(t, repo.docs, doc.ID)

	url, err := func() (string, error) {
		_, url, err := svc.DownloadURL(context.Background(), orgID, doc.ID)
		return url, err
	}()
	require.NoError(t, err)
	require.Contains(t, url, doc.ObjectKey)
}

func TestUploadDefaultsContentType(t *testing.T) {
	svc := NewService(newFakeMetadataRepo(), newFakeObjectStore(), nil)

	doc, err := svc.Upload(context.Background(), UploadInput{
		OrganizationID: uuid.New(),
		FileName:       "notes.txt",
		SizeBytes:      2,
		Body:           strings.NewReader("hi"),
	})
	require.NoError(t, err)
	require.Equal(t, "application/octet-stream", doc.ContentType)
}

func TestUploadRejectsOversizeAndUnnamed(t *testing.T) {
	svc := NewService(newFakeMetadataRepo(), newFakeObjectStore(), nil)
	ctx := context.Background()

	_, err := svc.Upload(ctx, UploadInput{
		OrganizationID: uuid.New(),
		FileName:       "huge.bin",
		SizeBytes:      MaxDocumentSize + 1,
	})
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = svc.Upload(ctx, UploadInput{OrganizationID: uuid.New(), SizeBytes: 1})
	require.Error(t, err)
}

func TestUploadCleansUpOrphanOnMetadataFailure(t *testing.T) {
	repo := newFakeMetadataRepo()
	repo.insertErr = errors.New("insert failed")
	store := newFakeObjectStore()
	svc := NewService(repo, store, nil)

	_, err := svc.Upload(context.Background(), UploadInput{
		OrganizationID: uuid.New(),
		FileName:       "lease.pdf",
		SizeBytes:      4,
		Body:           strings.NewReader("%PDF"),
	})
	require.Error(t, err)
	require.Empty(t, store.objects, "orphaned object should be removed")
}

func TestDeleteTolerantOfStrayBlob(t *testing.T) {
	repo := newFakeMetadataRepo()
	store := newFakeObjectStore()
	svc := NewService(repo, store, nil)
	orgID := uuid.New()

	doc, err := svc.Upload(context.Background(), UploadInput{
		OrganizationID: orgID,
		FileName:       "lease.pdf",
		SizeBytes:      4,
		Body:           strings.NewReader("%PDF"),
	})
	require.NoError(t, err)

	store.deleteErr = errors.New("s3 unavailable")
	require.NoError(t, svc.Delete(context.Background(), orgID, doc.ID),
		"metadata removal succeeds even when the blob delete fails")
	require.NotContains(t, repo.docs, doc.ID)
}

func TestDeleteScopedToOrganization(t *testing.T) {
	repo := newFakeMetadataRepo()
	svc := NewService(repo, newFakeObjectStore(), nil)
	orgID := uuid.New()

	doc, err := svc.Upload(context.Background(), UploadInput{
		OrganizationID: orgID,
		FileName:       "lease.pdf",
		SizeBytes:      4,
		Body:           strings.NewReader("%PDF"),
	})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), uuid.New(), doc.ID)
	require.ErrorIs(t, err, ErrNotFound, "another organization must not reach the document")
	require.Contains(t, repo.docs, doc.ID)
}
