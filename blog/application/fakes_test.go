package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dfryer1193/blogspace/blog/domain"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 64)...)
)

// fakeMediaStore records calls and hands out predictable URLs
type fakeMediaStore struct {
	mu        sync.Mutex
	uploads   []string
	deletes   []string
	uploadErr error
	deleteErr error
}

func (f *fakeMediaStore) StoreImage(ctx context.Context, content []byte, contentType string, folder string) (*domain.StoredImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploadErr != nil {
		return nil, f.uploadErr
	}

	name := fmt.Sprintf("img%d", len(f.uploads)+1)
	f.uploads = append(f.uploads, folder+"/"+name)
	return &domain.StoredImage{
		URL: fmt.Sprintf("https://res.cloudinary.com/demo/image/upload/v1/%s/%s.png", folder, name),
		Ref: folder + "/" + name,
	}, nil
}

func (f *fakeMediaStore) DeleteImage(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, ref)
	return f.deleteErr
}

func (f *fakeMediaStore) Owns(url string) bool {
	return strings.HasPrefix(url, "https://res.cloudinary.com/")
}

func (f *fakeMediaStore) calls() (uploads, deletes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...), append([]string(nil), f.deletes...)
}

// memoryRepository is an in-memory domain.PostRepository
type memoryRepository struct {
	mu        sync.Mutex
	posts     map[string]*domain.Post
	nextID    int
	createErr error
	updateErr error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{posts: map[string]*domain.Post{}}
}

func clonePost(p *domain.Post) *domain.Post {
	c := *p
	c.Tags = append([]string{}, p.Tags...)
	return &c
}

func (m *memoryRepository) CreatePost(ctx context.Context, p *domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if err := p.Validate(); err != nil {
		return err
	}

	m.nextID++
	p.ID = fmt.Sprintf("post-%d", m.nextID)
	p.Version = 1
	m.posts[p.ID] = clonePost(p)
	return nil
}

func (m *memoryRepository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	return clonePost(p), nil
}

func (m *memoryRepository) ListPosts(ctx context.Context) ([]*domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	posts := make([]*domain.Post, 0, len(m.posts))
	for _, p := range m.posts {
		posts = append(posts, clonePost(p))
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.Before(posts[j].CreatedAt) })
	return posts, nil
}

func (m *memoryRepository) UpdatePost(ctx context.Context, id string, u *domain.PostUpdate) (*domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return nil, m.updateErr
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if u.ExpectedVersion > 0 && u.ExpectedVersion != p.Version {
		return nil, domain.ErrVersionConflict
	}

	p.Title, p.Content, p.Author, p.Category = u.Title, u.Content, u.Author, u.Category
	p.Tags = append([]string{}, u.Tags...)
	p.ImageURL, p.ImageRef = u.ImageURL, u.ImageRef
	if u.PublishDate != nil {
		p.PublishDate = u.PublishDate
	}
	p.Version++
	return clonePost(p), nil
}

func (m *memoryRepository) DeletePost(ctx context.Context, id string) (*domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	delete(m.posts, id)
	return p, nil
}

func (m *memoryRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}

// seed stores p as-is, bypassing id assignment
func (m *memoryRepository) seed(p *domain.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.Version == 0 {
		p.Version = 1
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.posts[p.ID] = clonePost(p)
}

var errStoreDown = errors.New("store down")
