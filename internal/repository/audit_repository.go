package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// AuditRepository appends and reads the immutable audit trail. There are no
// update or delete operations on purpose.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]domain.AuditEntry, error)
	ListRecent(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository instantiates repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_entries (action, entity_type, entity_id, actor_user_id, actor_name, actor_role, changes, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.ActorID,
		entry.ActorName,
		entry.ActorRole,
		entry.Changes,
		entry.Metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, action, entity_type, entity_id, actor_user_id, actor_name, actor_role, changes, metadata, created_at
        FROM audit_entries
        WHERE entity_type=$1 AND entity_id=$2
        ORDER BY created_at ASC, id ASC
        LIMIT $3 OFFSET $4`
	return r.list(ctx, query, entityType, entityID, normalizeLimit(limit), normalizeOffset(offset))
}

func (r *auditRepository) ListRecent(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, action, entity_type, entity_id, actor_user_id, actor_name, actor_role, changes, metadata, created_at
        FROM audit_entries
        ORDER BY created_at DESC, id DESC
        LIMIT $1 OFFSET $2`
	return r.list(ctx, query, normalizeLimit(limit), normalizeOffset(offset))
}

func (r *auditRepository) list(ctx context.Context, query string, args ...any) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func scanAuditEntries(rows pgx.Rows) ([]domain.AuditEntry, error) {
	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&entry.ActorID,
			&entry.ActorName,
			&entry.ActorRole,
			&entry.Changes,
			&entry.Metadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
