package application

import (
	"net/url"
	"path"
	"strings"

	"github.com/dfryer1193/blogspace/blog/domain"
	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxImageSize is the largest upload accepted, 5 MiB.
	MaxImageSize = 5 << 20

	// CreateFolder receives images uploaded with a new post.
	CreateFolder = "blogspace_posts"
	// UpdateFolder receives images uploaded while editing, and is the prefix of derived references.
	UpdateFolder = "blogspace_uploads"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ValidateImage enforces the size and type limits before any upload and returns the
// content type to send to the media store. The declared type, when present, and the sniffed
// bytes must both be JPEG or PNG.
func ValidateImage(img *domain.Image) (string, error) {
	if len(img.Content) > MaxImageSize {
		return "", domain.NewValidationError("image exceeds maximum size of %d bytes", MaxImageSize)
	}

	declared := strings.ToLower(strings.TrimSpace(img.ContentType))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && !allowedImageTypes[declared] {
		return "", domain.NewValidationError("unsupported image type %q: only JPEG and PNG are allowed", declared)
	}

	detected := mimetype.Detect(img.Content)
	for t := range allowedImageTypes {
		if detected.Is(t) {
			return t, nil
		}
	}

	return "", domain.NewValidationError("image content is %s: only JPEG and PNG are allowed", detected.String())
}

// DeriveImageRef recovers a media store reference from an image URL: the last path segment
// up to its first dot, prefixed with folder. Used only for posts stored without a reference.
func DeriveImageRef(imageURL, folder string) string {
	u, err := url.Parse(imageURL)
	if err != nil || u.Path == "" {
		return ""
	}

	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}

	name, _, _ := strings.Cut(base, ".")
	if name == "" {
		return ""
	}

	return folder + "/" + name
}
