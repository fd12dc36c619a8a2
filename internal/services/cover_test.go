package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/inkwell-blog/apiserver/internal/storage"
	"github.com/inkwell-blog/apiserver/internal/store"
)

type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: map[string][]byte{}}
}

func (s *fakeObjectStorage) EnsureBucket(ctx context.Context) error { return nil }

func (s *fakeObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeObjectStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeObjectStorage) Bucket() string { return "test-bucket" }

func TestUploadCoverAuthorOnly(t *testing.T) {
	service, _ := newTestPostService(nil)
	service.WithMedia(storage.NewMediaStore(newFakeObjectStorage()))
	post := seedPost(t, service, 1, "body", false)
	ctx := context.Background()

	if err := service.UploadCover(ctx, post.ID, 2, []byte("png-bytes")); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-author upload: got %v, want ErrForbidden", err)
	}

	if err := service.UploadCover(ctx, post.ID, 1, []byte("png-bytes")); err != nil {
		t.Fatalf("author upload: %v", err)
	}

	reader, err := service.GetCover(ctx, post.ID)
	if err != nil {
		t.Fatalf("get cover: %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read cover: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("got cover %q, want %q", data, "png-bytes")
	}

	got, err := service.GetProjected(ctx, post.ID, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasCover {
		t.Error("projection does not report cover")
	}
}

func TestUploadCoverValidation(t *testing.T) {
	service, _ := newTestPostService(nil)
	service.WithMedia(storage.NewMediaStore(newFakeObjectStorage()))
	post := seedPost(t, service, 1, "body", false)
	ctx := context.Background()

	if err := service.UploadCover(ctx, post.ID, 1, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty upload: got %v, want ErrInvalidInput", err)
	}
	if err := service.UploadCover(ctx, 99, 1, []byte("x")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown post: got %v, want ErrNotFound", err)
	}
}

func TestGetCoverMissing(t *testing.T) {
	service, _ := newTestPostService(nil)
	service.WithMedia(storage.NewMediaStore(newFakeObjectStorage()))
	post := seedPost(t, service, 1, "body", false)

	if _, err := service.GetCover(context.Background(), post.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("post without cover: got %v, want ErrNotFound", err)
	}
}
