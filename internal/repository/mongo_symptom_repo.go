package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/hitoshi/epimap/internal/model"
)

const symptomCollection = "symptoms"

type mongoSymptomRepo struct {
	db *mongo.Database
}

// NewMongoSymptomRepo はMongoDBバックエンドのSymptomRepositoryを生成する。
func NewMongoSymptomRepo(db *mongo.Database) SymptomRepository {
	return &mongoSymptomRepo{db: db}
}

// Create は症状レポートを保存し、採番した識別子を返す。
// タイムスタンプはサーバー時刻で上書きし、識別子はストアが採番する。
func (r *mongoSymptomRepo) Create(ctx context.Context, report *model.SymptomReport) (string, error) {
	report.Timestamp = time.Now()

	doc := bson.M{
		"symptoms":          report.Symptoms,
		"suspected_disease": report.SuspectedDisease,
		"severity":          report.Severity,
		"location":          report.Location,
		"timestamp":         report.Timestamp,
	}

	result, err := r.db.Collection(symptomCollection).InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}

	objectID, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return "", errors.New("failed to convert inserted ID to ObjectID")
	}

	report.ID = objectID.Hex()
	return report.ID, nil
}
