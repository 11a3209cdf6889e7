package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakeObjectStore struct {
	putErr    error
	removeErr error

	objects map[string][]byte
	types   map[string]string
	removed []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects: map[string][]byte{},
		types:   map[string]string{},
	}
}

func (f *fakeObjectStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	b, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucketName+"/"+objectName] = b
	f.types[bucketName+"/"+objectName] = opts.ContentType
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func (f *fakeObjectStore) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, bucketName+"/"+objectName)
	return f.removeErr
}

func TestMinIOStore_StoreImage(t *testing.T) {
	fake := newFakeObjectStore()
	store := newMinIOStore(fake, "media", "https://cdn.example.com/")

	stored, err := store.StoreImage(context.Background(), []byte("jpeg"), "image/jpeg", "blogspace_posts")
	if err != nil {
		t.Fatalf("StoreImage failed: %v", err)
	}

	if !strings.HasPrefix(stored.Ref, "blogspace_posts/") || !strings.HasSuffix(stored.Ref, ".jpg") {
		t.Errorf("Ref = %s, want blogspace_posts/<uuid>.jpg", stored.Ref)
	}
	if stored.URL != "https://cdn.example.com/media/"+stored.Ref {
		t.Errorf("URL = %s", stored.URL)
	}
	if string(fake.objects["media/"+stored.Ref]) != "jpeg" {
		t.Error("object content was not uploaded")
	}
	if fake.types["media/"+stored.Ref] != "image/jpeg" {
		t.Errorf("content type = %s, want image/jpeg", fake.types["media/"+stored.Ref])
	}
	if !store.Owns(stored.URL) {
		t.Error("store should own the URL it returned")
	}
}

func TestMinIOStore_StoreImage_Error(t *testing.T) {
	fake := newFakeObjectStore()
	fake.putErr = errors.New("access denied")
	store := newMinIOStore(fake, "media", "http://localhost:9000")

	if _, err := store.StoreImage(context.Background(), []byte("x"), "image/png", "f"); err == nil {
		t.Error("StoreImage should fail")
	}
}

func TestMinIOStore_DeleteImage(t *testing.T) {
	fake := newFakeObjectStore()
	store := newMinIOStore(fake, "media", "http://localhost:9000")

	if err := store.DeleteImage(context.Background(), "blogspace_posts/a.png"); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}
	if len(fake.removed) != 1 || fake.removed[0] != "media/blogspace_posts/a.png" {
		t.Errorf("removed = %v", fake.removed)
	}

	fake.removeErr = errors.New("boom")
	if err := store.DeleteImage(context.Background(), "x"); err == nil {
		t.Error("DeleteImage should surface remove errors")
	}
}

func TestMinIOStore_Owns(t *testing.T) {
	store := newMinIOStore(newFakeObjectStore(), "media", "http://localhost:9000")

	tests := []struct {
		url  string
		want bool
	}{
		{"http://localhost:9000/media/blogspace_posts/a.png", true},
		{"http://localhost:9000/other/a.png", false},
		{"https://res.cloudinary.com/demo/image/upload/a.png", false},
	}

	for _, tt := range tests {
		if got := store.Owns(tt.url); got != tt.want {
			t.Errorf("Owns(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
