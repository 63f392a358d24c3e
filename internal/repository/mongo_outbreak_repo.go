package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/epimap/internal/model"
)

const outbreakCollection = "outbreaks"

type mongoOutbreakRepo struct {
	db *mongo.Database
}

// NewMongoOutbreakRepo はMongoDBバックエンドのOutbreakRepositoryを生成する。
func NewMongoOutbreakRepo(db *mongo.Database) OutbreakRepository {
	return &mongoOutbreakRepo{db: db}
}

// ListAll は全アウトブレイクレコードを取得する。
func (r *mongoOutbreakRepo) ListAll(ctx context.Context) ([]model.Outbreak, error) {
	cursor, err := r.db.Collection(outbreakCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	outbreaks := []model.Outbreak{}
	if err := cursor.All(ctx, &outbreaks); err != nil {
		return nil, err
	}
	return outbreaks, nil
}

// Upsert はregionをキーとしてリスクスコアをUPSERTする。
func (r *mongoOutbreakRepo) Upsert(ctx context.Context, outbreak model.Outbreak) error {
	_, err := r.db.Collection(outbreakCollection).UpdateOne(
		ctx,
		bson.M{"_id": outbreak.Region},
		bson.M{"$set": bson.M{"risk": outbreak.Risk}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}
