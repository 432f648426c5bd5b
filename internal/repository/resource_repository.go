package repository

import (
	"context"

	"github.com/spec-kit/intranet/internal/domain"
)

// ResourceRepository persists resources of every kind. Missing rows are
// reported as pgx.ErrNoRows by every implementation.
type ResourceRepository interface {
	List(ctx context.Context, kind domain.Kind) ([]domain.Resource, error)
	GetByID(ctx context.Context, kind domain.Kind, id int64) (*domain.Resource, error)
	Create(ctx context.Context, kind domain.Kind, res *domain.Resource) error
	Update(ctx context.Context, kind domain.Kind, res *domain.Resource) error
	Delete(ctx context.Context, kind domain.Kind, id int64) error
}

// HistoryRepository stores audit entries.
type HistoryRepository interface {
	Create(ctx context.Context, kind domain.Kind, entry *domain.HistoryEntry) error
	ListByResource(ctx context.Context, kind domain.Kind, resourceID int64) ([]domain.HistoryEntry, error)
}
