package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/dfryer1193/blogspace/blog/domain"
)

const cloudinaryHost = "res.cloudinary.com"

var _ domain.MediaStore = (*CloudinaryStore)(nil)

// cloudinaryUploader is the part of the Cloudinary upload API the store uses
type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// CloudinaryStore keeps post images on Cloudinary. The reference of an image is its public id.
type CloudinaryStore struct {
	api cloudinaryUploader
}

func NewCloudinaryStore(cfg CloudinaryConfig) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true

	return newCloudinaryStore(&cld.Upload), nil
}

func newCloudinaryStore(api cloudinaryUploader) *CloudinaryStore {
	return &CloudinaryStore{
		api: api,
	}
}

func (s *CloudinaryStore) StoreImage(ctx context.Context, content []byte, contentType string, folder string) (*domain.StoredImage, error) {
	res, err := s.api.Upload(ctx, bytes.NewReader(content), uploader.UploadParams{
		Folder: folder,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" || res.PublicID == "" {
		return nil, fmt.Errorf("cloudinary upload: empty response for %s image", contentType)
	}

	return &domain.StoredImage{
		URL: res.SecureURL,
		Ref: res.PublicID,
	}, nil
}

func (s *CloudinaryStore) DeleteImage(ctx context.Context, ref string) error {
	res, err := s.api.Destroy(ctx, uploader.DestroyParams{
		PublicID: ref,
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy %s: %w", ref, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy %s: %s", ref, res.Error.Message)
	}
	if res.Result != "ok" {
		return fmt.Errorf("cloudinary destroy %s: result %q", ref, res.Result)
	}

	return nil
}

// Owns reports whether imageURL is served by Cloudinary's delivery host
func (s *CloudinaryStore) Owns(imageURL string) bool {
	u, err := url.Parse(imageURL)
	if err != nil {
		return false
	}
	return u.Hostname() == cloudinaryHost
}
