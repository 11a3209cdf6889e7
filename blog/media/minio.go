package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dfryer1193/blogspace/blog/domain"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const bucketInitTimeout = 5 * time.Second

var _ domain.MediaStore = (*MinIOStore)(nil)

// objectStore is the part of the MinIO client the store uses
type objectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type MinIOConfig struct {
	Endpoint string
	User     string
	Password string
	Bucket   string
	UseSSL   bool

	// PublicURL is the base readers fetch objects from. Defaults to the endpoint.
	PublicURL string
}

// MinIOStore keeps post images in an S3-compatible bucket. The reference of an image is its object name.
type MinIOStore struct {
	cli     objectStore
	bucket  string
	baseURL string
}

// NewMinIOStore connects to the endpoint and creates the bucket if it does not exist yet
func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.User, cfg.Password, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, bucketInitTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	baseURL := cfg.PublicURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = scheme + "://" + cfg.Endpoint
	}

	return newMinIOStore(client, cfg.Bucket, baseURL), nil
}

func newMinIOStore(cli objectStore, bucket, baseURL string) *MinIOStore {
	return &MinIOStore{
		cli:     cli,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *MinIOStore) StoreImage(ctx context.Context, content []byte, contentType string, folder string) (*domain.StoredImage, error) {
	objectName := fmt.Sprintf("%s/%s%s", folder, uuid.New().String(), extensionFor(contentType))

	_, err := s.cli.PutObject(
		ctx,
		s.bucket,
		objectName,
		bytes.NewReader(content),
		int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return nil, fmt.Errorf("minio put %s: %w", objectName, err)
	}

	return &domain.StoredImage{
		URL: s.objectURL(objectName),
		Ref: objectName,
	}, nil
}

func (s *MinIOStore) DeleteImage(ctx context.Context, ref string) error {
	if err := s.cli.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove %s: %w", ref, err)
	}
	return nil
}

// Owns reports whether imageURL points into this store's bucket
func (s *MinIOStore) Owns(imageURL string) bool {
	return strings.HasPrefix(imageURL, s.objectURL(""))
}

func (s *MinIOStore) objectURL(objectName string) string {
	return s.baseURL + "/" + s.bucket + "/" + objectName
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	return ""
}
