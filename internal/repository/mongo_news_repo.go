package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/epimap/internal/model"
)

const newsCollection = "news"

type mongoNewsRepo struct {
	db *mongo.Database
}

// NewMongoNewsRepo はMongoDBバックエンドのNewsRepositoryを生成する。
func NewMongoNewsRepo(db *mongo.Database) NewsRepository {
	return &mongoNewsRepo{db: db}
}

// UpsertItems は記事をGUIDをキーとして冪等にUPSERTし、新規作成件数を返す。
// 既存記事はタイトル・要約・取得時刻のみ更新する。
func (r *mongoNewsRepo) UpsertItems(ctx context.Context, items []model.NewsItem) (int, error) {
	created := 0
	for _, item := range items {
		result, err := r.db.Collection(newsCollection).UpdateOne(
			ctx,
			bson.M{"guid": item.GUID},
			bson.M{
				"$set": bson.M{
					"title":      item.Title,
					"summary":    item.Summary,
					"fetched_at": item.FetchedAt,
				},
				"$setOnInsert": bson.M{
					"_id":          item.ID,
					"guid":         item.GUID,
					"link":         item.Link,
					"source":       item.Source,
					"published_at": item.PublishedAt,
				},
			},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			return created, err
		}
		if result.UpsertedCount > 0 {
			created++
		}
	}
	return created, nil
}

// ListRecent は公開日時の降順で直近の記事を取得する。
func (r *mongoNewsRepo) ListRecent(ctx context.Context, limit int) ([]model.NewsItem, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "published_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.db.Collection(newsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []model.NewsItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}
