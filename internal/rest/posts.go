package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dfryer1193/blogspace/api"
	"github.com/dfryer1193/blogspace/blog/application"
	"github.com/dfryer1193/blogspace/blog/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PostService is what the handlers need from the application layer
type PostService interface {
	ListPosts(ctx context.Context) ([]*domain.Post, error)
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	CreatePost(ctx context.Context, in *application.CreatePostInput) (*domain.Post, error)
	UpdatePost(ctx context.Context, id string, in *application.UpdatePostInput) (*domain.Post, error)
	DeletePost(ctx context.Context, id string) error
}

var _ PostService = (*application.PostService)(nil)

type PostsApi struct {
	svc PostService
}

func NewPostsApi(svc PostService) *PostsApi {
	return &PostsApi{
		svc: svc,
	}
}

func (a *PostsApi) GetPosts(c *gin.Context) {
	posts, err := a.svc.ListPosts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]api.Post, 0, len(posts))
	for _, p := range posts {
		dto := postResponse(c, p)
		dto.Excerpt = application.Excerpt(p.Content)
		out = append(out, dto)
	}

	c.JSON(http.StatusOK, out)
}

func (a *PostsApi) GetPost(c *gin.Context) {
	post, err := a.svc.GetPost(c.Request.Context(), c.Param("postId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, postResponse(c, post))
}

// CreatePost accepts multipart fields title, content, author, category, tags (JSON text) and an optional image
func (a *PostsApi) CreatePost(c *gin.Context) {
	if err := parseForm(c); err != nil {
		respondError(c, err)
		return
	}

	in := &application.CreatePostInput{
		Title:    c.PostForm("title"),
		Content:  c.PostForm("content"),
		Author:   c.PostForm("author"),
		Category: c.PostForm("category"),
	}

	// Missing fields are reported ahead of a bad tags field
	if err := application.ValidateCreate(in); err != nil {
		respondError(c, err)
		return
	}

	tags, err := application.ParseTags(c.PostForm("tags"))
	if err != nil {
		respondError(c, err)
		return
	}
	in.Tags = tags

	in.Image, err = readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	post, err := a.svc.CreatePost(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, api.CreatedResponse{
		Success: true,
		Message: "Post created successfully",
		Data:    postResponse(c, post),
	})
}

// UpdatePost accepts a multipart "post" field holding the JSON of the editable fields and an optional image
func (a *PostsApi) UpdatePost(c *gin.Context) {
	if err := parseForm(c); err != nil {
		respondError(c, err)
		return
	}

	raw, ok := c.GetPostForm("post")
	if !ok || raw == "" {
		respondError(c, domain.NewValidationError("post field is required"))
		return
	}

	var proto api.PostProto
	if err := json.Unmarshal([]byte(raw), &proto); err != nil {
		respondError(c, &domain.MalformedPayloadError{Field: "post", Err: err})
		return
	}

	image, err := readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	post, err := a.svc.UpdatePost(c.Request.Context(), c.Param("postId"), &application.UpdatePostInput{
		Title:       proto.Title,
		Content:     proto.Content,
		Author:      proto.Author,
		Category:    proto.Category,
		Tags:        proto.Tags,
		PublishDate: proto.PublishDate.Ptr(),
		ImageURL:    proto.ImageURL,
		Version:     proto.Version,
		Image:       image,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, postResponse(c, post))
}

func (a *PostsApi) DeletePost(c *gin.Context) {
	if err := a.svc.DeletePost(c.Request.Context(), c.Param("postId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Post deleted successfully"})
}

// parseForm parses multipart bodies. Other encodings are left to gin's PostForm.
func parseForm(c *gin.Context) error {
	if _, err := c.MultipartForm(); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return &domain.MalformedPayloadError{Field: "form", Err: err}
	}
	return nil
}

// readImage returns the "image" file, or nil when none was sent. At most one byte past
// the size limit is read so oversized files are still rejected by validation.
func readImage(c *gin.Context) (*domain.Image, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.MalformedPayloadError{Field: "image", Err: err}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded image: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, application.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded image: %w", err)
	}

	return &domain.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

const legacyClientKey = "legacyClient"

// markLegacy flags requests on the /api paths, whose clients read the post id from "_id"
func markLegacy(c *gin.Context) {
	c.Set(legacyClientKey, true)
	c.Next()
}

func postResponse(c *gin.Context, p *domain.Post) api.Post {
	dto := toApiPost(p)
	if c.GetBool(legacyClientKey) {
		dto.LegacyID = dto.ID
	}
	return dto
}

func toApiPost(p *domain.Post) api.Post {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	return api.Post{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		Author:      p.Author,
		Category:    p.Category,
		Tags:        tags,
		ImageURL:    p.ImageURL,
		PublishDate: p.PublishDate,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
	}
}

// respondError maps domain errors onto status codes
func respondError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		malformedErr  *domain.MalformedPayloadError
		upstreamErr   *domain.UpstreamError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Message: validationErr.Reason, Fields: validationErr.Fields})
	case errors.As(err, &malformedErr):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Message: malformedErr.Error()})
	case errors.Is(err, domain.ErrPostNotFound), errors.Is(err, domain.ErrNoPosts):
		msg := domain.ErrPostNotFound.Error()
		if errors.Is(err, domain.ErrNoPosts) {
			msg = domain.ErrNoPosts.Error()
		}
		c.JSON(http.StatusNotFound, api.ErrorResponse{Message: msg})
	case errors.Is(err, domain.ErrVersionConflict):
		c.JSON(http.StatusConflict, api.ErrorResponse{Message: err.Error()})
	case errors.As(err, &upstreamErr):
		log.Error().Err(err).Str("service", upstreamErr.Service).Str("op", upstreamErr.Op).Msg("Upstream failure")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Message: fmt.Sprintf("%s: %s failed", upstreamErr.Service, upstreamErr.Op)})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Message: "internal server error"})
	}

	_ = c.Error(err)
}
