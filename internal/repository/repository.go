package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"vinylops/wrap-report/internal/domain"
)

// Error constants for repository layer
var (
	ErrNotFound = RepositoryError("not found")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// ReportRepository defines the interface for report history records.
// Records are bookkeeping only; the photos themselves live in the remote
// object store.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Report, error)
	ListByCarNumber(ctx context.Context, carNumber string, limit int64) ([]domain.Report, error)
	ListRecent(ctx context.Context, limit int64) ([]domain.Report, error)
}
