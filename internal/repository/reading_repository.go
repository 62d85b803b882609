// internal/repository/reading_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempctl-service/internal/database"
	"tempctl-service/internal/model"
)

// readingRepository implements ReadingRepository interface
type readingRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *database.DB, logger *zap.Logger) ReadingRepository {
	return &readingRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a temperature reading
func (r *readingRepository) Create(ctx context.Context, reading *model.Reading) error {
	query := `
		INSERT INTO readings (id, controller_id, channel, value, unit, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		reading.ID, reading.ControllerID, reading.Channel,
		reading.Value, reading.Unit, reading.TakenAt,
	)

	if err != nil {
		r.logger.Error("Failed to create reading", zap.Error(err), zap.String("channel", reading.Channel))
		return fmt.Errorf("failed to create reading: %w", err)
	}

	return nil
}

// ListByChannel retrieves readings for a controller channel since a given time
func (r *readingRepository) ListByChannel(ctx context.Context, controllerID uuid.UUID, channel string, since time.Time, limit int) ([]*model.Reading, error) {
	if limit < 1 {
		limit = 1000
	}

	query := `
		SELECT id, controller_id, channel, value, unit, taken_at
		FROM readings
		WHERE controller_id = $1 AND channel = $2 AND taken_at >= $3
		ORDER BY taken_at DESC
		LIMIT $4
	`

	rows, err := r.db.QueryContext(ctx, query, controllerID, channel, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	readings := []*model.Reading{}
	for rows.Next() {
		reading := &model.Reading{}
		err := rows.Scan(
			&reading.ID, &reading.ControllerID, &reading.Channel,
			&reading.Value, &reading.Unit, &reading.TakenAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	return readings, rows.Err()
}

// Latest retrieves the most recent reading for a controller channel
func (r *readingRepository) Latest(ctx context.Context, controllerID uuid.UUID, channel string) (*model.Reading, error) {
	query := `
		SELECT id, controller_id, channel, value, unit, taken_at
		FROM readings
		WHERE controller_id = $1 AND channel = $2
		ORDER BY taken_at DESC
		LIMIT 1
	`

	reading := &model.Reading{}
	err := r.db.QueryRowContext(ctx, query, controllerID, channel).Scan(
		&reading.ID, &reading.ControllerID, &reading.Channel,
		&reading.Value, &reading.Unit, &reading.TakenAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no readings for controller %s channel %s", controllerID, channel)
		}
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	return reading, nil
}

// DeleteOldReadings removes readings older than the given time
func (r *readingRepository) DeleteOldReadings(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM readings WHERE taken_at < $1`

	result, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old readings: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted > 0 {
		r.logger.Info("Old readings deleted", zap.Int64("count", deleted))
	}

	return deleted, nil
}
