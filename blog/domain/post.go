package domain

import (
	"context"
	"strings"
	"time"
)

// Post represents a blog post.
// A post is created with its image (if any) already uploaded to the media store; ImageRef is the
// media store's own reference for ImageURL and is what cleanup deletes.
type Post struct {
	ID          string
	Title       string
	Content     string
	Author      string
	Category    string
	Tags        []string
	ImageURL    *string
	ImageRef    string
	PublishDate *time.Time
	Version     int64
	CreatedAt   time.Time
}

// HasImage reports whether the post references an image.
func (p *Post) HasImage() bool {
	return p.ImageURL != nil && *p.ImageURL != ""
}

// Validate checks the fields every stored post must carry.
// Repositories call it before every write.
func (p *Post) Validate() error {
	return requireFields(map[string]string{
		"title":    p.Title,
		"content":  p.Content,
		"author":   p.Author,
		"category": p.Category,
	})
}

// PostUpdate is the replacement set applied by PostRepository.UpdatePost.
// Fields outside this set (ID, CreatedAt) are never touched.
type PostUpdate struct {
	Title       string
	Content     string
	Author      string
	Category    string
	Tags        []string
	PublishDate *time.Time // nil keeps the stored value
	ImageURL    *string    // nil clears the image
	ImageRef    string

	// ExpectedVersion guards against lost updates when non-zero.
	ExpectedVersion int64
}

// Validate applies the same required-field rules as Post.Validate.
func (u *PostUpdate) Validate() error {
	return requireFields(map[string]string{
		"title":    u.Title,
		"content":  u.Content,
		"author":   u.Author,
		"category": u.Category,
	})
}

type PostRepository interface {
	CreatePost(ctx context.Context, p *Post) error
	GetPost(ctx context.Context, id string) (*Post, error)
	ListPosts(ctx context.Context) ([]*Post, error)
	UpdatePost(ctx context.Context, id string, u *PostUpdate) (*Post, error)
	DeletePost(ctx context.Context, id string) (*Post, error)
}

// requiredFieldOrder keeps error messages stable regardless of map iteration order.
var requiredFieldOrder = []string{"title", "content", "author", "category"}

func requireFields(values map[string]string) error {
	var missing []string
	for _, name := range requiredFieldOrder {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return NewMissingFieldsError(missing)
	}
	return nil
}
