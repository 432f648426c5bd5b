package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/intranet/internal/domain"
)

type resourceRepository struct {
	pool *pgxpool.Pool
}

// NewResourceRepository builds the Postgres resource repository. Declared
// fields live in a jsonb column.
func NewResourceRepository(pool *pgxpool.Pool) ResourceRepository {
	return &resourceRepository{pool: pool}
}

func (r *resourceRepository) List(ctx context.Context, kind domain.Kind) ([]domain.Resource, error) {
	const query = `
        SELECT id, status, fields FROM resources WHERE kind=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *res)
	}
	return result, rows.Err()
}

func (r *resourceRepository) GetByID(ctx context.Context, kind domain.Kind, id int64) (*domain.Resource, error) {
	const query = `
        SELECT id, status, fields FROM resources WHERE kind=$1 AND id=$2`
	return scanResource(r.pool.QueryRow(ctx, query, kind, id))
}

func (r *resourceRepository) Create(ctx context.Context, kind domain.Kind, res *domain.Resource) error {
	const query = `
        INSERT INTO resources (kind, status, fields)
        VALUES ($1,$2,$3)
        RETURNING id`
	return r.pool.QueryRow(ctx, query, kind, res.Status, fieldsOrEmpty(res.Fields)).Scan(&res.ID)
}

func (r *resourceRepository) Update(ctx context.Context, kind domain.Kind, res *domain.Resource) error {
	const query = `
        UPDATE resources SET status=$1, fields=$2, updated_at=NOW()
        WHERE kind=$3 AND id=$4`
	cmd, err := r.pool.Exec(ctx, query, res.Status, fieldsOrEmpty(res.Fields), kind, res.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *resourceRepository) Delete(ctx context.Context, kind domain.Kind, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE kind=$1 AND id=$2`, kind, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanResource(row pgx.Row) (*domain.Resource, error) {
	var (
		res    domain.Resource
		status string
		fields map[string]any
	)
	if err := row.Scan(&res.ID, &status, &fields); err != nil {
		return nil, err
	}
	res.Status = domain.Status(status)
	res.Fields = domain.Fields(fields)
	if res.Fields == nil {
		res.Fields = domain.Fields{}
	}
	return &res, nil
}

func fieldsOrEmpty(f domain.Fields) map[string]any {
	if f == nil {
		return map[string]any{}
	}
	return f
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository builds the Postgres history repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Create(ctx context.Context, kind domain.Kind, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO resource_history (resource_id, kind, type, description, actor, created_at)
        SELECT id, kind, $3::text, $4::text, $5::text, COALESCE($6::timestamptz, NOW()) FROM resources WHERE kind=$1 AND id=$2
        RETURNING id, created_at`
	var ts any
	if !entry.Timestamp.IsZero() {
		ts = entry.Timestamp
	}
	return r.pool.QueryRow(ctx, query,
		kind,
		entry.ResourceID,
		entry.Type,
		entry.Description,
		entry.Actor,
		ts,
	).Scan(&entry.ID, &entry.Timestamp)
}

func (r *historyRepository) ListByResource(ctx context.Context, kind domain.Kind, resourceID int64) ([]domain.HistoryEntry, error) {
	const query = `
        SELECT id, resource_id, type, description, actor, created_at
        FROM resource_history WHERE kind=$1 AND resource_id=$2 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, kind, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.HistoryEntry{}
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ResourceID,
			&entry.Type,
			&entry.Description,
			&entry.Actor,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
