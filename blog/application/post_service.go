package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dfryer1193/blogspace/blog/domain"
	"github.com/rs/zerolog/log"
)

// CreatePostInput carries the form fields of a create request. Image is nil when no file was sent.
type CreatePostInput struct {
	Title    string
	Content  string
	Author   string
	Category string
	Tags     []string
	Image    *domain.Image
}

// UpdatePostInput carries the editable fields of an update request.
type UpdatePostInput struct {
	Title       string
	Content     string
	Author      string
	Category    string
	Tags        []string
	PublishDate *time.Time

	// ImageURL nil keeps the stored image, "" removes it, anything else is stored as given.
	ImageURL *string

	// Version, when non-zero, must match the stored version.
	Version int64

	Image *domain.Image
}

type ServiceOptions struct {
	// SanitizeContent strips unsafe markup from post content before it is stored.
	SanitizeContent bool

	// MediaTimeout bounds each media store call. Zero leaves calls bounded only by the caller's context.
	MediaTimeout time.Duration
}

type PostService struct {
	repo  domain.PostRepository
	media domain.MediaStore
	opts  ServiceOptions
	now   func() time.Time

	// Service lifecycle context for best-effort media cleanups, cancelled by Close()
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup

	// mu guards closed and every wg.Add so no cleanup is queued once Close is waiting
	mu     sync.Mutex
	closed bool
}

func NewPostService(repo domain.PostRepository, media domain.MediaStore, opts ServiceOptions) *PostService {
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	return &PostService{
		repo:   repo,
		media:  media,
		opts:   opts,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		wg:     &wg,
	}
}

// Close waits for pending image cleanups and then releases the service context
func (s *PostService) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()

	return nil
}

// ListPosts returns every post in creation order. An empty store is reported as domain.ErrNoPosts.
func (s *PostService) ListPosts(ctx context.Context) ([]*domain.Post, error) {
	posts, err := s.repo.ListPosts(ctx)
	if err != nil {
		return nil, storeError("list posts", err)
	}

	if len(posts) == 0 {
		return nil, domain.ErrNoPosts
	}

	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}

	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, storeError("get post", err)
	}

	return post, nil
}

// CreatePost validates the payload, uploads the image if one was attached and persists the post.
// When persisting fails the uploaded image is removed again.
func (s *PostService) CreatePost(ctx context.Context, in *CreatePostInput) (*domain.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Author = strings.TrimSpace(in.Author)
	in.Category = strings.TrimSpace(in.Category)
	in.Tags = normalizeTags(in.Tags)

	if err := ValidateCreate(in); err != nil {
		return nil, err
	}

	contentType, err := validateAttachment(in.Image)
	if err != nil {
		return nil, err
	}

	post := &domain.Post{
		Title:    in.Title,
		Content:  s.cleanContent(in.Content),
		Author:   in.Author,
		Category: in.Category,
		Tags:     in.Tags,
	}
	if post.Content == "" {
		return nil, domain.NewMissingFieldsError([]string{"content"})
	}

	var stored *domain.StoredImage
	if contentType != "" {
		stored, err = s.storeImage(ctx, in.Image.Content, contentType, CreateFolder)
		if err != nil {
			return nil, err
		}
		post.ImageURL = &stored.URL
		post.ImageRef = stored.Ref
	}

	now := s.now().UTC()
	post.CreatedAt = now
	post.PublishDate = &now

	if err := s.repo.CreatePost(ctx, post); err != nil {
		if stored != nil {
			s.discardImage(stored.Ref, "create failed")
		}
		return nil, storeError("create post", err)
	}

	log.Info().Str("postID", post.ID).Bool("image", stored != nil).Msg("Post created")
	return post, nil
}

// UpdatePost replaces the editable fields of a post and keeps its image in sync:
//   - a new image file replaces the stored image
//   - an empty ImageURL removes the stored image
//   - otherwise ImageURL is kept (nil keeps the stored value)
//
// An image made stale by the update is deleted only after the update is persisted.
func (s *PostService) UpdatePost(ctx context.Context, id string, in *UpdatePostInput) (*domain.Post, error) {
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Author = strings.TrimSpace(in.Author)
	in.Category = strings.TrimSpace(in.Category)
	in.Tags = normalizeTags(in.Tags)

	if err := ValidateUpdate(in); err != nil {
		return nil, err
	}

	contentType, err := validateAttachment(in.Image)
	if err != nil {
		return nil, err
	}

	update := &domain.PostUpdate{
		Title:           in.Title,
		Content:         s.cleanContent(in.Content),
		Author:          in.Author,
		Category:        in.Category,
		Tags:            in.Tags,
		PublishDate:     in.PublishDate,
		ExpectedVersion: in.Version,
	}
	if update.Content == "" {
		return nil, domain.NewMissingFieldsError([]string{"content"})
	}

	// Look the post up first so a missing id or stale version never uploads anything
	existing, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, storeError("get post", err)
	}
	if in.Version > 0 && in.Version != existing.Version {
		return nil, domain.ErrVersionConflict
	}

	var (
		uploaded *domain.StoredImage
		staleRef string
	)

	switch {
	case contentType != "":
		uploaded, err = s.storeImage(ctx, in.Image.Content, contentType, UpdateFolder)
		if err != nil {
			return nil, err
		}
		update.ImageURL = &uploaded.URL
		update.ImageRef = uploaded.Ref
		staleRef = s.refFor(existing)

	case in.ImageURL != nil && *in.ImageURL == "":
		update.ImageURL = nil
		staleRef = s.refFor(existing)

	case in.ImageURL == nil || (existing.ImageURL != nil && *in.ImageURL == *existing.ImageURL):
		update.ImageURL = existing.ImageURL
		update.ImageRef = existing.ImageRef

	default:
		imageURL := strings.TrimSpace(*in.ImageURL)
		update.ImageURL = &imageURL
	}

	updated, err := s.repo.UpdatePost(ctx, id, update)
	if err != nil {
		if uploaded != nil {
			s.discardImage(uploaded.Ref, "update failed")
		}
		return nil, storeError("update post", err)
	}

	if staleRef != "" && (uploaded == nil || staleRef != uploaded.Ref) {
		s.discardImage(staleRef, "image replaced")
	}

	log.Info().Str("postID", id).Int64("version", updated.Version).Msg("Post updated")
	return updated, nil
}

// DeletePost removes a post and, best-effort, its image.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.DeletePost(ctx, id)
	if err != nil {
		return storeError("delete post", err)
	}

	if ref := s.refFor(deleted); ref != "" {
		s.discardImage(ref, "post deleted")
	}

	log.Info().Str("postID", id).Msg("Post deleted")
	return nil
}

func (s *PostService) cleanContent(content string) string {
	if !s.opts.SanitizeContent {
		return content
	}
	return SanitizeContent(content)
}

// refFor returns the media store reference of a post's image, or "" if the image is not ours.
// Posts written before references were stored fall back to the URL naming convention.
func (s *PostService) refFor(p *domain.Post) string {
	if !p.HasImage() {
		return ""
	}
	if p.ImageRef != "" {
		return p.ImageRef
	}
	if s.media.Owns(*p.ImageURL) {
		return DeriveImageRef(*p.ImageURL, UpdateFolder)
	}
	return ""
}

func (s *PostService) storeImage(ctx context.Context, content []byte, contentType, folder string) (*domain.StoredImage, error) {
	ctx, cancel := s.mediaContext(ctx)
	defer cancel()

	stored, err := s.media.StoreImage(ctx, content, contentType, folder)
	if err != nil {
		return nil, &domain.UpstreamError{Service: "media store", Op: "upload image", Err: err}
	}

	return stored, nil
}

// discardImage deletes ref in the background. Failures are logged and never reach the caller.
// After Close the image is left in place and logged so it can be removed by hand.
func (s *PostService) discardImage(ref, reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		log.Warn().Str("ref", ref).Str("reason", reason).Msg("Service closed, image left in media store")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ctx, cancel := s.mediaContext(s.ctx)
		defer cancel()

		if err := s.media.DeleteImage(ctx, ref); err != nil {
			log.Warn().Err(err).Str("ref", ref).Str("reason", reason).Msg("Failed to delete image")
			return
		}
		log.Debug().Str("ref", ref).Str("reason", reason).Msg("Deleted image")
	}()
}

func (s *PostService) mediaContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.MediaTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.MediaTimeout)
	}
	return context.WithCancel(ctx)
}

// validateAttachment returns "" when no usable file was attached.
func validateAttachment(img *domain.Image) (string, error) {
	if img == nil || len(img.Content) == 0 {
		return "", nil
	}
	return ValidateImage(img)
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.NewValidationError("post id is required")
	}
	return id, nil
}

// storeError passes domain errors through and marks everything else as a storage failure.
func storeError(op string, err error) error {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrPostNotFound),
		errors.Is(err, domain.ErrVersionConflict),
		errors.As(err, &validationErr):
		return err
	}
	return &domain.UpstreamError{Service: "post store", Op: op, Err: err}
}
