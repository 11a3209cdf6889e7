package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dfryer1193/blogspace/blog/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ domain.PostRepository = (*CachedPostRepository)(nil)

const (
	defaultCacheTTL = time.Hour

	postKeyPrefix = "blogspace:post:"
	listKey       = "blogspace:posts:all"
	generationKey = "blogspace:posts:gen"
)

// storeIfCurrent writes ARGV[2] to KEYS[2] only while KEYS[1] still holds the generation
// observed before the backing read.
var storeIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// CachedPostRepository serves reads from Redis and invalidates on every write.
// Every write bumps a generation counter. A read fills the cache only if the counter is
// unchanged since before it hit the wrapped repository, so a read racing a write never
// caches the old row. Redis failures degrade to the wrapped repository and are only logged.
type CachedPostRepository struct {
	next domain.PostRepository
	rdb  redis.UniversalClient
	ttl  time.Duration
}

func NewCachedPostRepository(next domain.PostRepository, rdb redis.UniversalClient, ttl time.Duration) *CachedPostRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedPostRepository{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
	}
}

func (c *CachedPostRepository) CreatePost(ctx context.Context, p *domain.Post) error {
	if err := c.next.CreatePost(ctx, p); err != nil {
		return err
	}

	c.invalidate(ctx, listKey)
	return nil
}

func (c *CachedPostRepository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	key := postKeyPrefix + id

	var cached domain.Post
	if c.load(ctx, key, &cached) {
		return &cached, nil
	}

	gen := c.generation(ctx)
	post, err := c.next.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	c.store(ctx, gen, key, post)
	return post, nil
}

func (c *CachedPostRepository) ListPosts(ctx context.Context) ([]*domain.Post, error) {
	var cached []*domain.Post
	if c.load(ctx, listKey, &cached) {
		return cached, nil
	}

	gen := c.generation(ctx)
	posts, err := c.next.ListPosts(ctx)
	if err != nil {
		return nil, err
	}

	c.store(ctx, gen, listKey, posts)
	return posts, nil
}

func (c *CachedPostRepository) UpdatePost(ctx context.Context, id string, u *domain.PostUpdate) (*domain.Post, error) {
	post, err := c.next.UpdatePost(ctx, id, u)

	// A conflict means someone else changed the post, so drop our copy either way
	c.invalidate(ctx, postKeyPrefix+id, listKey)

	return post, err
}

func (c *CachedPostRepository) DeletePost(ctx context.Context, id string) (*domain.Post, error) {
	post, err := c.next.DeletePost(ctx, id)
	if err != nil {
		return nil, err
	}

	c.invalidate(ctx, postKeyPrefix+id, listKey)
	return post, nil
}

func (c *CachedPostRepository) load(ctx context.Context, key string, dest any) bool {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().Err(err).Str("key", key).Msg("Cache get failed")
		}
		return false
	}

	if err := json.Unmarshal(b, dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		c.invalidate(ctx, key)
		return false
	}

	return true
}

// generation returns the current write generation, or "" when Redis cannot be read.
func (c *CachedPostRepository) generation(ctx context.Context) string {
	gen, err := c.rdb.Get(ctx, generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0"
	}
	if err != nil {
		log.Debug().Err(err).Msg("Cache generation read failed")
		return ""
	}
	return gen
}

func (c *CachedPostRepository) store(ctx context.Context, gen, key string, v any) {
	if gen == "" {
		return
	}

	b, err := json.Marshal(v)
	if err != nil {
		return
	}

	stored, err := storeIfCurrent.Run(ctx, c.rdb, []string{generationKey, key}, gen, b, c.ttl.Milliseconds()).Int()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache set failed")
		return
	}
	if stored == 0 {
		log.Debug().Str("key", key).Msg("Skipped caching a read that raced a write")
	}
}

func (c *CachedPostRepository) invalidate(ctx context.Context, keys ...string) {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("Cache invalidation failed")
	}
}
