package jobqueue

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	objects   map[string]bool
	existsErr error
	deleted   []string
}

func (f *fakeStore) Delete(ctx context.Context, objectKey string) error {
	f.deleted = append(f.deleted, objectKey)
	delete(f.objects, objectKey)
	return nil
}

func (f *fakeStore) Exists(ctx context.Context, objectKey string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.objects[objectKey], nil
}

func blobDeleteJob(objectKey string) *Job {
	payload := BlobDeleteJobPayload{OwnerID: "user-1", ObjectKey: objectKey}
	return &Job{ID: "job-1", Type: JobTypeBlobDelete, Payload: payload.ToMap()}
}

func TestProcessBlobDeleteRemovesStoredObject(t *testing.T) {
	store := &fakeStore{objects: map[string]bool{"products/user-1/a.jpg": true}}
	q := &Queue{blobs: store}

	if err := q.processBlobDeleteJob(context.Background(), blobDeleteJob("products/user-1/a.jpg")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "products/user-1/a.jpg" {
		t.Fatalf("unexpected delete calls: %v", store.deleted)
	}
}

func TestProcessBlobDeleteSkipsMissingObject(t *testing.T) {
	store := &fakeStore{objects: map[string]bool{}}
	q := &Queue{blobs: store}

	if err := q.processBlobDeleteJob(context.Background(), blobDeleteJob("products/user-1/gone.jpg")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("expected no delete calls, got %v", store.deleted)
	}
}

func TestProcessBlobDeleteSurfacesStoreErrors(t *testing.T) {
	store := &fakeStore{existsErr: errors.New("connection reset")}
	q := &Queue{blobs: store}

	if err := q.processBlobDeleteJob(context.Background(), blobDeleteJob("products/user-1/a.jpg")); err == nil {
		t.Fatal("expected error when the store is unreachable")
	}
	if len(store.deleted) != 0 {
		t.Fatalf("expected no delete calls, got %v", store.deleted)
	}
}

func TestProcessBlobDeleteRejectsEmptyKey(t *testing.T) {
	q := &Queue{blobs: &fakeStore{}}

	if err := q.processBlobDeleteJob(context.Background(), blobDeleteJob("")); err == nil {
		t.Fatal("expected error for payload without an object key")
	}
}
