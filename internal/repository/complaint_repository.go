package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// ErrVersionConflict signals that a complaint row changed underneath an update.
var ErrVersionConflict = errors.New("complaint version conflict")

// ComplaintFilter captures search parameters for complaint listings.
type ComplaintFilter struct {
	CitizenID   *string
	AssigneeID  *string
	Statuses    []domain.ComplaintStatus
	Categories  []domain.ComplaintCategory
	HasAssignee *bool
	DueBefore   *time.Time
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// SLAStats aggregates deadline outcomes across the complaint table.
type SLAStats struct {
	ResolvedWithinSLA int64
	ResolvedLate      int64
	OpenBreached      int64
}

// ComplaintRepository encapsulates complaint persistence.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint, seed *domain.StatusHistoryEntry) error
	ApplyUpdate(ctx context.Context, complaint *domain.Complaint, entry *domain.StatusHistoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
	GetByReference(ctx context.Context, reference string) (*domain.Complaint, error)
	ListWithFilter(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error)
	ListOpenDue(ctx context.Context, dueBefore time.Time, limit int) ([]domain.Complaint, error)
	ListHistory(ctx context.Context, complaintID string) ([]domain.StatusHistoryEntry, error)
	AddComment(ctx context.Context, comment *domain.OfficerComment) error
	ListComments(ctx context.Context, complaintID string) ([]domain.OfficerComment, error)
	CountByStatus(ctx context.Context) (map[domain.ComplaintStatus]int64, error)
	CountByCategory(ctx context.Context) (map[domain.ComplaintCategory]int64, error)
	SLAStats(ctx context.Context, now time.Time) (*SLAStats, error)
}

type complaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository instantiates repository.
func NewComplaintRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &complaintRepository{pool: pool}
}

const complaintColumns = `id, reference, citizen_user_id, category, title, description, status,
               assignee_user_id, assigned_at, sla_deadline, resolved_at, is_sla_met,
               resolution_proof, resolution_notes, version, created_at, updated_at`

// Create inserts the complaint and its seed history row in one transaction.
func (r *complaintRepository) Create(ctx context.Context, complaint *domain.Complaint, seed *domain.StatusHistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
        INSERT INTO complaints (reference, citizen_user_id, category, title, description, status, sla_deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, version, created_at, updated_at`
	if err := tx.QueryRow(ctx, query,
		complaint.Reference,
		complaint.CitizenID,
		complaint.Category,
		complaint.Title,
		complaint.Description,
		complaint.Status,
		complaint.SLADeadline,
	).Scan(&complaint.ID, &complaint.Version, &complaint.CreatedAt, &complaint.UpdatedAt); err != nil {
		return err
	}

	seed.ComplaintID = complaint.ID
	if err := insertHistory(ctx, tx, seed); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ApplyUpdate persists a mutated complaint together with its history entry.
// The update only lands when the stored version still matches the version the
// complaint was loaded at; a moved version yields ErrVersionConflict.
func (r *complaintRepository) ApplyUpdate(ctx context.Context, complaint *domain.Complaint, entry *domain.StatusHistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
        UPDATE complaints SET status=$1, assignee_user_id=$2, assigned_at=$3, resolved_at=$4, is_sla_met=$5,
            resolution_proof=$6, resolution_notes=$7, version=version+1, updated_at=NOW()
        WHERE id=$8 AND version=$9
        RETURNING version, updated_at`
	err = tx.QueryRow(ctx, query,
		complaint.Status,
		complaint.AssigneeID,
		complaint.AssignedAt,
		complaint.ResolvedAt,
		complaint.IsSLAMet,
		complaint.ResolutionProof,
		complaint.ResolutionNotes,
		complaint.ID,
		complaint.Version,
	).Scan(&complaint.Version, &complaint.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if probeErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM complaints WHERE id=$1)`, complaint.ID).Scan(&exists); probeErr != nil {
			return probeErr
		}
		if exists {
			return ErrVersionConflict
		}
		return pgx.ErrNoRows
	}
	if err != nil {
		return err
	}

	if entry != nil {
		entry.ComplaintID = complaint.ID
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *domain.StatusHistoryEntry) error {
	const query = `
        INSERT INTO complaint_status_history (complaint_id, status, changed_by_user_id, changed_by_role, notes)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, changed_at`
	return tx.QueryRow(ctx, query,
		entry.ComplaintID,
		entry.Status,
		entry.ChangedByID,
		entry.ChangedByRole,
		entry.Notes,
	).Scan(&entry.ID, &entry.ChangedAt)
}

func (r *complaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE id=$1`, complaintColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *complaintRepository) GetByReference(ctx context.Context, reference string) (*domain.Complaint, error) {
	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE reference=$1`, complaintColumns)
	return r.fetchSingle(ctx, query, reference)
}

func (r *complaintRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Complaint, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	complaint, err := scanComplaint(row)
	if err != nil {
		return nil, err
	}
	return complaint, nil
}

func (r *complaintRepository) ListWithFilter(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error) {
	base := fmt.Sprintf(`SELECT %s FROM complaints`, complaintColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CitizenID != nil {
		args = append(args, *filter.CitizenID)
		clauses = append(clauses, fmt.Sprintf("citizen_user_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_user_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.HasAssignee != nil {
		if *filter.HasAssignee {
			clauses = append(clauses, "assignee_user_id IS NOT NULL")
		} else {
			clauses = append(clauses, "assignee_user_id IS NULL")
		}
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		clauses = append(clauses, fmt.Sprintf("sla_deadline <= $%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(reference) LIKE %s)", placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComplaints(rows)
}

// ListOpenDue returns open, assigned complaints whose deadline falls on or
// before the cutoff, nearest deadline first. The SLA monitor sweeps this set.
func (r *complaintRepository) ListOpenDue(ctx context.Context, dueBefore time.Time, limit int) ([]domain.Complaint, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`
        SELECT %s FROM complaints
        WHERE status IN ($1,$2,$3) AND assignee_user_id IS NOT NULL AND sla_deadline <= $4
        ORDER BY sla_deadline ASC
        LIMIT %d`, complaintColumns, limit)

	rows, err := r.pool.Query(ctx, query,
		domain.StatusNew, domain.StatusAssigned, domain.StatusInProgress, dueBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComplaints(rows)
}

func (r *complaintRepository) ListHistory(ctx context.Context, complaintID string) ([]domain.StatusHistoryEntry, error) {
	const query = `
        SELECT id, complaint_id, status, changed_by_user_id, changed_by_role, notes, changed_at
        FROM complaint_status_history
        WHERE complaint_id=$1
        ORDER BY changed_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, complaintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ComplaintID,
			&entry.Status,
			&entry.ChangedByID,
			&entry.ChangedByRole,
			&entry.Notes,
			&entry.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *complaintRepository) AddComment(ctx context.Context, comment *domain.OfficerComment) error {
	const query = `
        INSERT INTO complaint_comments (complaint_id, comment, added_by_user_id)
        VALUES ($1,$2,$3)
        RETURNING id, added_at`
	return r.pool.QueryRow(ctx, query,
		comment.ComplaintID,
		comment.Comment,
		comment.AddedByID,
	).Scan(&comment.ID, &comment.AddedAt)
}

func (r *complaintRepository) ListComments(ctx context.Context, complaintID string) ([]domain.OfficerComment, error) {
	const query = `
        SELECT id, complaint_id, comment, added_by_user_id, added_at
        FROM complaint_comments
        WHERE complaint_id=$1
        ORDER BY added_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, complaintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OfficerComment
	for rows.Next() {
		var comment domain.OfficerComment
		if err := rows.Scan(
			&comment.ID,
			&comment.ComplaintID,
			&comment.Comment,
			&comment.AddedByID,
			&comment.AddedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}

func (r *complaintRepository) CountByStatus(ctx context.Context) (map[domain.ComplaintStatus]int64, error) {
	const query = `SELECT status, COUNT(*) FROM complaints GROUP BY status`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ComplaintStatus]int64)
	for rows.Next() {
		var status domain.ComplaintStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *complaintRepository) CountByCategory(ctx context.Context) (map[domain.ComplaintCategory]int64, error) {
	const query = `SELECT category, COUNT(*) FROM complaints GROUP BY category`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ComplaintCategory]int64)
	for rows.Next() {
		var category domain.ComplaintCategory
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts[category] = count
	}
	return counts, rows.Err()
}

func (r *complaintRepository) SLAStats(ctx context.Context, now time.Time) (*SLAStats, error) {
	const query = `
        SELECT
            COUNT(*) FILTER (WHERE is_sla_met IS TRUE),
            COUNT(*) FILTER (WHERE is_sla_met IS FALSE),
            COUNT(*) FILTER (WHERE status IN ($1,$2,$3) AND sla_deadline < $4)
        FROM complaints`
	var stats SLAStats
	if err := r.pool.QueryRow(ctx, query,
		domain.StatusNew, domain.StatusAssigned, domain.StatusInProgress, now,
	).Scan(&stats.ResolvedWithinSLA, &stats.ResolvedLate, &stats.OpenBreached); err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanComplaint(row pgx.Row) (*domain.Complaint, error) {
	var complaint domain.Complaint
	if err := row.Scan(
		&complaint.ID,
		&complaint.Reference,
		&complaint.CitizenID,
		&complaint.Category,
		&complaint.Title,
		&complaint.Description,
		&complaint.Status,
		&complaint.AssigneeID,
		&complaint.AssignedAt,
		&complaint.SLADeadline,
		&complaint.ResolvedAt,
		&complaint.IsSLAMet,
		&complaint.ResolutionProof,
		&complaint.ResolutionNotes,
		&complaint.Version,
		&complaint.CreatedAt,
		&complaint.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &complaint, nil
}

func scanComplaints(rows pgx.Rows) ([]domain.Complaint, error) {
	var result []domain.Complaint
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *complaint)
	}
	return result, rows.Err()
}
