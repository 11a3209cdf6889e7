package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dfryer1193/blogspace/blog/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ domain.PostRepository = (*MongoPostRepository)(nil)

// MongoPostRepository implements domain.PostRepository on a MongoDB collection.
// Documents use the field names of the existing "blogs" collection.
type MongoPostRepository struct {
	coll *mongo.Collection
}

func NewMongoPostRepository(coll *mongo.Collection) *MongoPostRepository {
	return &MongoPostRepository{
		coll: coll,
	}
}

type postDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Content     string             `bson:"content"`
	Author      string             `bson:"author"`
	Category    string             `bson:"category"`
	Tags        []string           `bson:"tags"`
	ImageURL    *string            `bson:"imageUrl"`
	ImageRef    string             `bson:"imageRef,omitempty"`
	PublishDate *time.Time         `bson:"publishDate,omitempty"`
	Version     int64              `bson:"version"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func (d *postDocument) toDomain() *domain.Post {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}

	return &domain.Post{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Content:     d.Content,
		Author:      d.Author,
		Category:    d.Category,
		Tags:        tags,
		ImageURL:    d.ImageURL,
		ImageRef:    d.ImageRef,
		PublishDate: d.PublishDate,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
	}
}

func (r *MongoPostRepository) CreatePost(ctx context.Context, p *domain.Post) error {
	if p == nil {
		return fmt.Errorf("post cannot be nil")
	}

	if err := p.Validate(); err != nil {
		return err
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	doc := &postDocument{
		Title:       p.Title,
		Content:     p.Content,
		Author:      p.Author,
		Category:    p.Category,
		Tags:        p.Tags,
		ImageURL:    p.ImageURL,
		ImageRef:    p.ImageRef,
		PublishDate: p.PublishDate,
		Version:     1,
		CreatedAt:   p.CreatedAt,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}

	p.ID = oid.Hex()
	p.Version = 1
	return nil
}

func (r *MongoPostRepository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc postDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *MongoPostRepository) ListPosts(ctx context.Context) ([]*domain.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}

	posts := make([]*domain.Post, 0, len(docs))
	for i := range docs {
		posts = append(posts, docs[i].toDomain())
	}

	return posts, nil
}

// UpdatePost applies the update atomically with FindOneAndUpdate and returns the new document
func (r *MongoPostRepository) UpdatePost(ctx context.Context, id string, u *domain.PostUpdate) (*domain.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("update cannot be nil")
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	tags := u.Tags
	if tags == nil {
		tags = []string{}
	}

	set := bson.M{
		"title":    u.Title,
		"content":  u.Content,
		"author":   u.Author,
		"category": u.Category,
		"tags":     tags,
		"imageUrl": u.ImageURL,
		"imageRef": u.ImageRef,
	}
	if u.PublishDate != nil {
		set["publishDate"] = u.PublishDate.UTC()
	}

	filter := bson.M{"_id": oid}
	if u.ExpectedVersion > 0 {
		filter["version"] = u.ExpectedVersion
	}

	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}

	var doc postDocument
	err = r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if u.ExpectedVersion > 0 {
			count, cerr := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
			if cerr != nil {
				return nil, fmt.Errorf("failed to check post existence: %w", cerr)
			}
			if count > 0 {
				return nil, domain.ErrVersionConflict
			}
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) (*domain.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc postDocument
	err = r.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}

	return doc.toDomain(), nil
}

// objectID parses a hex id. An id that cannot be an ObjectID cannot name a post.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	return oid, nil
}
