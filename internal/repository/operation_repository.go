// internal/repository/operation_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempctl-service/internal/database"
	"tempctl-service/internal/model"
)

// operationRepository implements OperationRepository interface
type operationRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db *database.DB, logger *zap.Logger) OperationRepository {
	return &operationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new control operation record
func (r *operationRepository) Create(ctx context.Context, operation *model.ControlOperation) error {
	query := `
		INSERT INTO control_operations (
			id, controller_id, operation_type, operation_data,
			priority, status, started_at, correlation_id, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		operation.ID, operation.ControllerID, operation.OperationType,
		operation.OperationData, operation.Priority, operation.Status,
		operation.StartedAt, operation.CorrelationID, operation.Result,
	)

	if err != nil {
		r.logger.Error("Failed to create operation", zap.Error(err), zap.String("operation_type", string(operation.OperationType)))
		return fmt.Errorf("failed to create operation: %w", err)
	}

	return nil
}

// GetByID retrieves an operation by its UUID
func (r *operationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ControlOperation, error) {
	query := `
		SELECT id, controller_id, operation_type, operation_data,
			   priority, status, started_at, completed_at, duration_ms,
			   error_message, correlation_id, result, created_at
		FROM control_operations WHERE id = $1
	`

	operation := &model.ControlOperation{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&operation.ID, &operation.ControllerID, &operation.OperationType,
		&operation.OperationData, &operation.Priority, &operation.Status,
		&operation.StartedAt, &operation.CompletedAt, &operation.DurationMs,
		&operation.ErrorMessage, &operation.CorrelationID, &operation.Result,
		&operation.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("operation not found with id: %s", id)
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	return operation, nil
}

// Update updates an existing operation
func (r *operationRepository) Update(ctx context.Context, operation *model.ControlOperation) error {
	query := `
		UPDATE control_operations SET
			status = $2, completed_at = $3, duration_ms = $4,
			error_message = $5, result = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		operation.ID, operation.Status, operation.CompletedAt,
		operation.DurationMs, operation.ErrorMessage, operation.Result,
	)

	if err != nil {
		r.logger.Error("Failed to update operation", zap.Error(err), zap.String("id", operation.ID.String()))
		return fmt.Errorf("failed to update operation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("operation not found with id: %s", operation.ID)
	}

	return nil
}

// UpdateStatus updates operation status
func (r *operationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OperationStatus) error {
	query := `UPDATE control_operations SET status = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update operation status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("operation not found with id: %s", id)
	}

	return nil
}

// List retrieves operations with filtering and pagination
func (r *operationRepository) List(ctx context.Context, filter *OperationFilter) ([]*model.ControlOperation, int, error) {
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.ControllerID != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("controller_id = $%d", argIndex))
		args = append(args, *filter.ControllerID)
		argIndex++
	}

	if filter.OperationType != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("operation_type = $%d", argIndex))
		args = append(args, *filter.OperationType)
		argIndex++
	}

	if filter.Status != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Priority != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("priority = $%d", argIndex))
		args = append(args, *filter.Priority)
		argIndex++
	}

	if filter.CorrelationID != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("correlation_id = $%d", argIndex))
		args = append(args, *filter.CorrelationID)
		argIndex++
	}

	if filter.StartDate != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.StartDate)
		argIndex++
	}

	if filter.EndDate != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.EndDate)
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM control_operations %s", whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count operations: %w", err)
	}

	orderBy := "created_at DESC"
	if filter.SortBy != "" {
		order := "ASC"
		if filter.SortOrder == "desc" {
			order = "DESC"
		}
		orderBy = fmt.Sprintf("%s %s", filter.SortBy, order)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = 20
	}

	offset := (filter.Page - 1) * filter.PerPage
	query := fmt.Sprintf(`
		SELECT id, controller_id, operation_type, operation_data,
			   priority, status, started_at, completed_at, duration_ms,
			   error_message, correlation_id, result, created_at
		FROM control_operations %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, argIndex, argIndex+1)

	args = append(args, filter.PerPage, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	operations, err := scanOperations(rows)
	if err != nil {
		return nil, 0, err
	}

	return operations, total, nil
}

// ListByController retrieves recent operations for a controller
func (r *operationRepository) ListByController(ctx context.Context, controllerID uuid.UUID, limit int) ([]*model.ControlOperation, error) {
	if limit < 1 {
		limit = 50
	}

	query := `
		SELECT id, controller_id, operation_type, operation_data,
			   priority, status, started_at, completed_at, duration_ms,
			   error_message, correlation_id, result, created_at
		FROM control_operations
		WHERE controller_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, controllerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations by controller: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// ListPending retrieves pending operations ordered by priority
func (r *operationRepository) ListPending(ctx context.Context, priority *model.OperationPriority) ([]*model.ControlOperation, error) {
	query := `
		SELECT id, controller_id, operation_type, operation_data,
			   priority, status, started_at, completed_at, duration_ms,
			   error_message, correlation_id, result, created_at
		FROM control_operations
		WHERE status = 'PENDING'
	`
	args := []interface{}{}

	if priority != nil {
		query += " AND priority = $1"
		args = append(args, *priority)
	}

	query += " ORDER BY priority, created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// GetOperationStats returns aggregate operation statistics
func (r *operationRepository) GetOperationStats(ctx context.Context, filter *OperationStatsFilter) (*OperationStats, error) {
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.ControllerID != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("controller_id = $%d", argIndex))
		args = append(args, *filter.ControllerID)
		argIndex++
	}

	if filter.StartDate != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.StartDate)
		argIndex++
	}

	if filter.EndDate != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.EndDate)
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT operation_type, status, priority, COUNT(*), COALESCE(AVG(duration_ms), 0)
		FROM control_operations %s
		GROUP BY operation_type, status, priority
	`, whereClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation stats: %w", err)
	}
	defer rows.Close()

	stats := &OperationStats{
		ByType:     make(map[model.OperationType]int),
		ByStatus:   make(map[model.OperationStatus]int),
		ByPriority: make(map[model.OperationPriority]int),
	}

	var totalDurationMs float64
	var completedCount int

	for rows.Next() {
		var opType model.OperationType
		var status model.OperationStatus
		var priority model.OperationPriority
		var count int
		var avgDurationMs float64

		if err := rows.Scan(&opType, &status, &priority, &count, &avgDurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}

		stats.TotalOperations += count
		stats.ByType[opType] += count
		stats.ByStatus[status] += count
		stats.ByPriority[priority] += count

		switch status {
		case model.OperationStatusSuccess:
			stats.SuccessfulOps += count
			totalDurationMs += avgDurationMs * float64(count)
			completedCount += count
		case model.OperationStatusFailed, model.OperationStatusTimeout:
			stats.FailedOps += count
		case model.OperationStatusPending, model.OperationStatusProcessing:
			stats.PendingOps += count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	if completedCount > 0 {
		stats.AvgDuration = time.Duration(totalDurationMs/float64(completedCount)) * time.Millisecond
	}

	return stats, nil
}

// DeleteOldOperations removes operations older than the given time
func (r *operationRepository) DeleteOldOperations(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM control_operations WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old operations: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted > 0 {
		r.logger.Info("Old operations deleted", zap.Int64("count", deleted))
	}

	return deleted, nil
}

// scanOperations scans operation rows into a slice
func scanOperations(rows *sql.Rows) ([]*model.ControlOperation, error) {
	operations := []*model.ControlOperation{}
	for rows.Next() {
		operation := &model.ControlOperation{}
		err := rows.Scan(
			&operation.ID, &operation.ControllerID, &operation.OperationType,
			&operation.OperationData, &operation.Priority, &operation.Status,
			&operation.StartedAt, &operation.CompletedAt, &operation.DurationMs,
			&operation.ErrorMessage, &operation.CorrelationID, &operation.Result,
			&operation.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		operations = append(operations, operation)
	}

	return operations, rows.Err()
}
