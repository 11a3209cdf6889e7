package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dfryer1193/blogspace/blog/domain"
	"github.com/dfryer1193/blogspace/shared/db"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var _ domain.PostRepository = (*SQLPostRepository)(nil)

// SQLPostRepository implements domain.PostRepository on SQLite or PostgreSQL through sqlx.
// Queries are written with ? placeholders and rebound for the connected driver.
type SQLPostRepository struct {
	db *sqlx.DB
}

// NewPostRepository creates a new SQLPostRepository from a connected sqlx.DB
func NewPostRepository(db *sqlx.DB) *SQLPostRepository {
	return &SQLPostRepository{
		db: db,
	}
}

const postColumns = `id, title, content, author, category, tags, image_url, image_ref, publish_date, version, created_at`

const insertPostQuery = `
	INSERT INTO posts (` + postColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreatePost assigns the post an id, version 1 and, if unset, a creation time, then stores it
func (r *SQLPostRepository) CreatePost(ctx context.Context, p *domain.Post) error {
	if p == nil {
		return fmt.Errorf("post cannot be nil")
	}

	if err := p.Validate(); err != nil {
		return err
	}

	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.ID = uuid.NewString()
	p.Version = 1

	executor := db.GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, r.db.Rebind(insertPostQuery),
		p.ID,
		p.Title,
		p.Content,
		p.Author,
		p.Category,
		tags,
		nullableString(p.ImageURL),
		p.ImageRef,
		nullableTime(p.PublishDate),
		p.Version,
		p.CreatedAt,
	)
	if err != nil {
		p.ID = ""
		return fmt.Errorf("failed to insert post: %w", err)
	}

	return nil
}

const getPostQuery = `SELECT ` + postColumns + ` FROM posts WHERE id = ?`

// GetPost retrieves a single post by ID
func (r *SQLPostRepository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	if id == "" {
		return nil, fmt.Errorf("post ID cannot be empty")
	}

	var row postRow
	executor := db.GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &row, r.db.Rebind(getPostQuery), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return row.toDomain(), nil
}

const listPostsQuery = `SELECT ` + postColumns + ` FROM posts ORDER BY created_at ASC, id ASC`

// ListPosts returns all posts in creation order
func (r *SQLPostRepository) ListPosts(ctx context.Context) ([]*domain.Post, error) {
	var rows []postRow
	executor := db.GetExecutor(ctx, r.db)
	if err := executor.SelectContext(ctx, &rows, listPostsQuery); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	posts := make([]*domain.Post, 0, len(rows))
	for i := range rows {
		posts = append(posts, rows[i].toDomain())
	}

	return posts, nil
}

const updatePostQuery = `
	UPDATE posts
	SET title = ?, content = ?, author = ?, category = ?, tags = ?,
		image_url = ?, image_ref = ?,
		publish_date = COALESCE(?, publish_date),
		version = version + 1
	WHERE id = ?
`

const postExistsQuery = `SELECT COUNT(*) FROM posts WHERE id = ?`

// UpdatePost replaces the editable fields of a post and bumps its version.
// A non-zero ExpectedVersion turns a version mismatch into domain.ErrVersionConflict.
func (r *SQLPostRepository) UpdatePost(ctx context.Context, id string, u *domain.PostUpdate) (*domain.Post, error) {
	if id == "" {
		return nil, fmt.Errorf("post ID cannot be empty")
	}
	if u == nil {
		return nil, fmt.Errorf("update cannot be nil")
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	tags, err := encodeTags(u.Tags)
	if err != nil {
		return nil, err
	}

	var updated *domain.Post
	err = db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		query := updatePostQuery
		args := []any{
			u.Title,
			u.Content,
			u.Author,
			u.Category,
			tags,
			nullableString(u.ImageURL),
			u.ImageRef,
			nullableTime(u.PublishDate),
			id,
		}
		if u.ExpectedVersion > 0 {
			query += ` AND version = ?`
			args = append(args, u.ExpectedVersion)
		}

		executor := db.GetExecutor(txCtx, r.db)
		res, err := executor.ExecContext(txCtx, r.db.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("failed to update post: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read update result: %w", err)
		}

		if affected == 0 {
			var count int
			if err := executor.GetContext(txCtx, &count, r.db.Rebind(postExistsQuery), id); err != nil {
				return fmt.Errorf("failed to check post existence: %w", err)
			}
			if count == 0 {
				return fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
			}
			return domain.ErrVersionConflict
		}

		updated, err = r.GetPost(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

const deletePostQuery = `DELETE FROM posts WHERE id = ?`

// DeletePost removes a post and returns it as it was stored
func (r *SQLPostRepository) DeletePost(ctx context.Context, id string) (*domain.Post, error) {
	if id == "" {
		return nil, fmt.Errorf("post ID cannot be empty")
	}

	var deleted *domain.Post
	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		post, err := r.GetPost(txCtx, id)
		if err != nil {
			return err
		}

		executor := db.GetExecutor(txCtx, r.db)
		if _, err := executor.ExecContext(txCtx, r.db.Rebind(deletePostQuery), id); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}

		deleted = post
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}

// postRow is a private struct used to scan database rows
// and provides a method to convert to the domain.Post model
type postRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Content     string         `db:"content"`
	Author      string         `db:"author"`
	Category    string         `db:"category"`
	Tags        string         `db:"tags"`
	ImageURL    sql.NullString `db:"image_url"`
	ImageRef    string         `db:"image_ref"`
	PublishDate sql.NullTime   `db:"publish_date"`
	Version     int64          `db:"version"`
	CreatedAt   time.Time      `db:"created_at"`
}

// toDomain converts a postRow to a domain.Post, handling nullable columns
func (pr *postRow) toDomain() *domain.Post {
	post := &domain.Post{
		ID:        pr.ID,
		Title:     pr.Title,
		Content:   pr.Content,
		Author:    pr.Author,
		Category:  pr.Category,
		Tags:      decodeTags(pr.Tags),
		ImageRef:  pr.ImageRef,
		Version:   pr.Version,
		CreatedAt: pr.CreatedAt,
	}

	if pr.ImageURL.Valid {
		imageURL := pr.ImageURL.String
		post.ImageURL = &imageURL
	}
	if pr.PublishDate.Valid {
		publishDate := pr.PublishDate.Time
		post.PublishDate = &publishDate
	}

	return post
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw string) []string {
	tags := []string{}
	if raw == "" {
		return tags
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return []string{}
	}
	return tags
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
