package mongo

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vinylops/wrap-report/internal/domain"
	"vinylops/wrap-report/internal/repository"
)

const reportCollectionName = "reports"

// mongoReportRepository implements repository.ReportRepository
type mongoReportRepository struct {
	collection *mongo.Collection
}

// NewMongoReportRepository creates a new report history repository backed by MongoDB.
func NewMongoReportRepository(db *mongo.Database) repository.ReportRepository {
	return &mongoReportRepository{
		collection: db.Collection(reportCollectionName),
	}
}

// Create inserts a new report record.
func (r *mongoReportRepository) Create(ctx context.Context, report *domain.Report) (primitive.ObjectID, error) {
	if report.ParkName == "" || report.CarNumber == "" || report.Folder == "" {
		return primitive.NilObjectID, errors.New("report requires parkName, carNumber, and folder")
	}

	report.ID = primitive.NewObjectID()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, report)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves one report record.
func (r *mongoReportRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Report, error) {
	var report domain.Report
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}

// ListByCarNumber returns the most recent reports for one vehicle.
func (r *mongoReportRepository) ListByCarNumber(ctx context.Context, carNumber string, limit int64) ([]domain.Report, error) {
	return r.list(ctx, bson.M{"carNumber": carNumber}, limit)
}

// ListRecent returns the most recent reports across all vehicles.
func (r *mongoReportRepository) ListRecent(ctx context.Context, limit int64) ([]domain.Report, error) {
	return r.list(ctx, bson.M{}, limit)
}

func (r *mongoReportRepository) list(ctx context.Context, filter bson.M, limit int64) ([]domain.Report, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []domain.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// EnsureReportIndexes creates the indexes the history queries rely on.
func EnsureReportIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "carNumber", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "reportId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
