// internal/repository/controller_repository.go
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

// controllerRepository implements ControllerRepository interface
type controllerRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewControllerRepository creates a new controller repository
func NewControllerRepository(db *database.DB, logger *zap.Logger) ControllerRepository {
	return &controllerRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new controller
func (r *controllerRepository) Create(ctx context.Context, controller *model.Controller) error {
	query := `
		INSERT INTO controllers (
			id, controller_id, brand, model, firmware_version,
			connection_type, connection_config, capabilities, channels,
			location, status, error_info
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		controller.ID, controller.ControllerID, controller.Brand,
		controller.Model, controller.FirmwareVersion, controller.ConnectionType,
		controller.ConnectionConfig, controller.Capabilities, controller.Channels,
		controller.Location, controller.Status, controller.ErrorInfo,
	)

	if err != nil {
		r.logger.Error("Failed to create controller", zap.Error(err), zap.String("controller_id", controller.ControllerID))
		return fmt.Errorf("failed to create controller: %w", err)
	}

	r.logger.Info("Controller created successfully", zap.String("controller_id", controller.ControllerID))
	return nil
}

// GetByID retrieves a controller by its UUID
func (r *controllerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Controller, error) {
	query := `
		SELECT id, controller_id, brand, model, firmware_version,
			   connection_type, connection_config, capabilities, channels,
			   location, status, last_ping, error_info, created_at, updated_at
		FROM controllers WHERE id = $1
	`

	controller := &model.Controller{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&controller.ID, &controller.ControllerID, &controller.Brand,
		&controller.Model, &controller.FirmwareVersion, &controller.ConnectionType,
		&controller.ConnectionConfig, &controller.Capabilities, &controller.Channels,
		&controller.Location, &controller.Status, &controller.LastPing,
		&controller.ErrorInfo, &controller.CreatedAt, &controller.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("controller not found with id: %s", id)
		}
		r.logger.Error("Failed to get controller by ID", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to get controller: %w", err)
	}

	return controller, nil
}

// GetByControllerID retrieves a controller by its external identifier
func (r *controllerRepository) GetByControllerID(ctx context.Context, controllerID string) (*model.Controller, error) {
	query := `
		SELECT id, controller_id, brand, model, firmware_version,
			   connection_type, connection_config, capabilities, channels,
			   location, status, last_ping, error_info, created_at, updated_at
		FROM controllers WHERE controller_id = $1
	`

	controller := &model.Controller{}
	err := r.db.QueryRowContext(ctx, query, controllerID).Scan(
		&controller.ID, &controller.ControllerID, &controller.Brand,
		&controller.Model, &controller.FirmwareVersion, &controller.ConnectionType,
		&controller.ConnectionConfig, &controller.Capabilities, &controller.Channels,
		&controller.Location, &controller.Status, &controller.LastPing,
		&controller.ErrorInfo, &controller.CreatedAt, &controller.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("controller not found with controller_id: %s", controllerID)
		}
		r.logger.Error("Failed to get controller by controller_id", zap.Error(err), zap.String("controller_id", controllerID))
		return nil, fmt.Errorf("failed to get controller: %w", err)
	}

	return controller, nil
}

// Update updates an existing controller
func (r *controllerRepository) Update(ctx context.Context, controller *model.Controller) error {
	query := `
		UPDATE controllers SET
			brand = $2, model = $3, firmware_version = $4,
			connection_type = $5, connection_config = $6, capabilities = $7,
			channels = $8, location = $9, status = $10, last_ping = $11,
			error_info = $12, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		controller.ID, controller.Brand, controller.Model,
		controller.FirmwareVersion, controller.ConnectionType, controller.ConnectionConfig,
		controller.Capabilities, controller.Channels, controller.Location,
		controller.Status, controller.LastPing, controller.ErrorInfo,
	)

	if err != nil {
		r.logger.Error("Failed to update controller", zap.Error(err), zap.String("controller_id", controller.ControllerID))
		return fmt.Errorf("failed to update controller: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("controller not found with id: %s", controller.ID)
	}

	r.logger.Debug("Controller updated successfully", zap.String("controller_id", controller.ControllerID))
	return nil
}

// UpdateStatus updates controller status
func (r *controllerRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ControllerStatus) error {
	query := `
		UPDATE controllers SET status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		r.logger.Error("Failed to update controller status", zap.Error(err), zap.String("id", id.String()))
		return fmt.Errorf("failed to update controller status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("controller not found with id: %s", id)
	}

	return nil
}

// Delete removes a controller
func (r *controllerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM controllers WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete controller", zap.Error(err), zap.String("id", id.String()))
		return fmt.Errorf("failed to delete controller: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("controller not found with id: %s", id)
	}

	r.logger.Info("Controller deleted successfully", zap.String("id", id.String()))
	return nil
}

// List retrieves controllers with filtering and pagination
func (r *controllerRepository) List(ctx context.Context, filter *ControllerFilter) ([]*model.Controller, int, error) {
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.Brand != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("brand = $%d", argIndex))
		args = append(args, *filter.Brand)
		argIndex++
	}

	if filter.Status != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Location != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("location ILIKE $%d", argIndex))
		args = append(args, "%"+*filter.Location+"%")
		argIndex++
	}

	if filter.SearchTerm != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("(controller_id ILIKE $%d OR model ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.SearchTerm+"%")
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM controllers %s", whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count controllers: %w", err)
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
		SELECT id, controller_id, brand, model, firmware_version,
			   connection_type, connection_config, capabilities, channels,
			   location, status, last_ping, error_info, created_at, updated_at
		FROM controllers %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, argIndex, argIndex+1)

	args = append(args, filter.PerPage, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list controllers: %w", err)
	}
	defer rows.Close()

	controllers := []*model.Controller{}
	for rows.Next() {
		controller := &model.Controller{}
		err := rows.Scan(
			&controller.ID, &controller.ControllerID, &controller.Brand,
			&controller.Model, &controller.FirmwareVersion, &controller.ConnectionType,
			&controller.ConnectionConfig, &controller.Capabilities, &controller.Channels,
			&controller.Location, &controller.Status, &controller.LastPing,
			&controller.ErrorInfo, &controller.CreatedAt, &controller.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan controller: %w", err)
		}
		controllers = append(controllers, controller)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration failed: %w", err)
	}

	return controllers, total, nil
}

// ListByStatus retrieves controllers with a specific status
func (r *controllerRepository) ListByStatus(ctx context.Context, status model.ControllerStatus) ([]*model.Controller, error) {
	query := `
		SELECT id, controller_id, brand, model, firmware_version,
			   connection_type, connection_config, capabilities, channels,
			   location, status, last_ping, error_info, created_at, updated_at
		FROM controllers WHERE status = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list controllers by status: %w", err)
	}
	defer rows.Close()

	controllers := []*model.Controller{}
	for rows.Next() {
		controller := &model.Controller{}
		err := rows.Scan(
			&controller.ID, &controller.ControllerID, &controller.Brand,
			&controller.Model, &controller.FirmwareVersion, &controller.ConnectionType,
			&controller.ConnectionConfig, &controller.Capabilities, &controller.Channels,
			&controller.Location, &controller.Status, &controller.LastPing,
			&controller.ErrorInfo, &controller.CreatedAt, &controller.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan controller: %w", err)
		}
		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

// UpdateLastPing updates the last ping time for a controller
func (r *controllerRepository) UpdateLastPing(ctx context.Context, id uuid.UUID, pingTime time.Time) error {
	query := `UPDATE controllers SET last_ping = $2 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, pingTime)
	if err != nil {
		return fmt.Errorf("failed to update last ping: %w", err)
	}
	return nil
}

// GetStats returns aggregate controller statistics
func (r *controllerRepository) GetStats(ctx context.Context) (*ControllerStats, error) {
	query := `SELECT brand, status, COUNT(*) FROM controllers GROUP BY brand, status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get controller stats: %w", err)
	}
	defer rows.Close()

	stats := &ControllerStats{
		ByBrand:  make(map[model.ControllerBrand]int),
		ByStatus: make(map[model.ControllerStatus]int),
	}

	for rows.Next() {
		var brand model.ControllerBrand
		var status model.ControllerStatus
		var count int

		if err := rows.Scan(&brand, &status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}

		stats.TotalControllers += count
		stats.ByBrand[brand] += count
		stats.ByStatus[status] += count

		switch status {
		case model.ControllerStatusOnline:
			stats.OnlineControllers += count
		case model.ControllerStatusOffline:
			stats.OfflineControllers += count
		case model.ControllerStatusError:
			stats.ErrorControllers += count
		}
	}

	return stats, rows.Err()
}
