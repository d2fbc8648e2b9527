package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// Mongo хранит посты и журнал запусков в MongoDB.
type Mongo struct {
	posts *mongo.Collection
	runs  *mongo.Collection
}

var (
	_ domain.PostRepo  = (*Mongo)(nil)
	_ domain.RunRepo   = (*Mongo)(nil)
	_ domain.RunReader = (*Mongo)(nil)
)

// NewMongo создаёт адаптер поверх базы db.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{posts: db.Collection("posts"), runs: db.Collection("scrape_runs")}
}

// EnsureIndexes создаёт уникальный индекс постов по (platform, post_id).
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	start := time.Now()
	_, err := m.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "post_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "platform", Value: 1}, {Key: "published_at", Value: -1}},
		},
	})
	metrics.ObserveNetworkRequest("mongo", "ensure_indexes", "posts", start, err)
	if err != nil {
		return fmt.Errorf("mongo: indexes: %w", err)
	}
	return nil
}

// SavePosts выполняет upsert постов одной пакетной записью.
func (m *Mongo) SavePosts(ctx context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(posts))
	for _, post := range posts {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"platform": post.Platform, "post_id": post.ID}).
			SetUpdate(postUpdate(post)).
			SetUpsert(true))
	}
	start := time.Now()
	_, err := m.posts.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	metrics.ObserveNetworkRequest("mongo", "posts_bulk_upsert", "posts", start, err)
	if err != nil {
		return fmt.Errorf("mongo: upsert posts: %w", err)
	}
	return nil
}

// postUpdate строит документ обновления поста. Повторный сбор без комментариев
// не затирает уже сохранённые: пустой список пишется только при вставке.
func postUpdate(post domain.Post) bson.M {
	set := bson.M{
		"post_id":      post.ID,
		"platform":     post.Platform,
		"published_at": post.PublishedAt,
		"text":         post.Text,
		"author":       post.Author,
		"engagement":   post.Engagement,
		"post_url":     post.URL,
	}
	if len(post.Extra) > 0 {
		set["platform_extra"] = post.Extra
	}
	update := bson.M{
		"$set":         set,
		"$currentDate": bson.M{"updated_at": true},
	}
	if len(post.Comments) > 0 {
		set["comments"] = post.Comments
	} else {
		update["$setOnInsert"] = bson.M{"comments": []domain.Comment{}}
	}
	return update
}

// ListPosts возвращает последние посты платформы; пустая платформа — все.
func (m *Mongo) ListPosts(ctx context.Context, platform domain.Platform, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{}
	if platform != "" {
		filter["platform"] = platform
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "published_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 0, "updated_at": 0})

	start := time.Now()
	cur, err := m.posts.Find(ctx, filter, opts)
	metrics.ObserveNetworkRequest("mongo", "posts_find", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var posts []domain.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("mongo: decode posts: %w", err)
	}
	for i := range posts {
		posts[i].PublishedAt = posts[i].PublishedAt.UTC()
	}
	return posts, nil
}

// StartRun записывает начало запуска.
func (m *Mongo) StartRun(ctx context.Context, run domain.ScrapeRun) error {
	start := time.Now()
	_, err := m.runs.InsertOne(ctx, run)
	metrics.ObserveNetworkRequest("mongo", "scrape_runs_insert", "scrape_runs", start, err)
	return err
}

// FinishRun заменяет запись о запуске итоговой.
func (m *Mongo) FinishRun(ctx context.Context, run domain.ScrapeRun) error {
	start := time.Now()
	_, err := m.runs.ReplaceOne(ctx, bson.M{"_id": run.ID}, run, options.Replace().SetUpsert(true))
	metrics.ObserveNetworkRequest("mongo", "scrape_runs_replace", "scrape_runs", start, err)
	return err
}

// GetRun возвращает запись о запуске.
func (m *Mongo) GetRun(ctx context.Context, id string) (domain.ScrapeRun, error) {
	start := time.Now()
	var run domain.ScrapeRun
	err := m.runs.FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	metrics.ObserveNetworkRequest("mongo", "scrape_runs_get", "scrape_runs", start, err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ScrapeRun{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.ScrapeRun{}, fmt.Errorf("mongo: get run: %w", err)
	}
	return run, nil
}
