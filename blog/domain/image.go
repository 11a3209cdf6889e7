package domain

import (
	"context"
)

// Image is an upload accepted from a client, not yet stored.
type Image struct {
	Filename    string
	ContentType string
	Content     []byte
}

// StoredImage is what the media store hands back after an upload.
type StoredImage struct {
	URL string
	Ref string
}

// MediaStore is an external image host.
type MediaStore interface {
	// StoreImage uploads content into folder and returns its public URL and reference.
	StoreImage(ctx context.Context, content []byte, contentType string, folder string) (*StoredImage, error)

	// DeleteImage removes the object identified by ref.
	DeleteImage(ctx context.Context, ref string) error

	// Owns reports whether url points into this media store.
	Owns(url string) bool
}
