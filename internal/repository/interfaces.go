// internal/repository/interfaces.go
package repository

import (
	"context"
	"time"

	"tempctl-service/internal/model"

	"github.com/google/uuid"
)

// ControllerRepository defines controller data access operations
type ControllerRepository interface {
	// CRUD operations
	Create(ctx context.Context, controller *model.Controller) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Controller, error)
	GetByControllerID(ctx context.Context, controllerID string) (*model.Controller, error)
	Update(ctx context.Context, controller *model.Controller) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ControllerStatus) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Listing and filtering
	List(ctx context.Context, filter *ControllerFilter) ([]*model.Controller, int, error)
	ListByStatus(ctx context.Context, status model.ControllerStatus) ([]*model.Controller, error)

	// Health and monitoring
	UpdateLastPing(ctx context.Context, id uuid.UUID, pingTime time.Time) error
	GetStats(ctx context.Context) (*ControllerStats, error)
}

// OperationRepository defines operation data access operations
type OperationRepository interface {
	// CRUD operations
	Create(ctx context.Context, operation *model.ControlOperation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ControlOperation, error)
	Update(ctx context.Context, operation *model.ControlOperation) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OperationStatus) error

	// Listing and filtering
	List(ctx context.Context, filter *OperationFilter) ([]*model.ControlOperation, int, error)
	ListByController(ctx context.Context, controllerID uuid.UUID, limit int) ([]*model.ControlOperation, error)
	ListPending(ctx context.Context, priority *model.OperationPriority) ([]*model.ControlOperation, error)

	// Analytics and reporting
	GetOperationStats(ctx context.Context, filter *OperationStatsFilter) (*OperationStats, error)

	// Cleanup
	DeleteOldOperations(ctx context.Context, olderThan time.Time) (int64, error)
}

// ReadingRepository defines temperature reading data access operations
type ReadingRepository interface {
	Create(ctx context.Context, reading *model.Reading) error
	ListByChannel(ctx context.Context, controllerID uuid.UUID, channel string, since time.Time, limit int) ([]*model.Reading, error)
	Latest(ctx context.Context, controllerID uuid.UUID, channel string) (*model.Reading, error)
	DeleteOldReadings(ctx context.Context, olderThan time.Time) (int64, error)
}

// Filter structures

// ControllerFilter represents controller listing filters
type ControllerFilter struct {
	Brand      *model.ControllerBrand  `json:"brand,omitempty"`
	Status     *model.ControllerStatus `json:"status,omitempty"`
	Location   *string                 `json:"location,omitempty"`
	SearchTerm *string                 `json:"search_term,omitempty"`
	Page       int                     `json:"page"`
	PerPage    int                     `json:"per_page"`
	SortBy     string                  `json:"sort_by"`
	SortOrder  string                  `json:"sort_order"`
}

// OperationFilter represents operation listing filters
type OperationFilter struct {
	ControllerID  *uuid.UUID               `json:"controller_id,omitempty"`
	OperationType *model.OperationType     `json:"operation_type,omitempty"`
	Status        *model.OperationStatus   `json:"status,omitempty"`
	Priority      *model.OperationPriority `json:"priority,omitempty"`
	CorrelationID *uuid.UUID               `json:"correlation_id,omitempty"`
	StartDate     *time.Time               `json:"start_date,omitempty"`
	EndDate       *time.Time               `json:"end_date,omitempty"`
	Page          int                      `json:"page"`
	PerPage       int                      `json:"per_page"`
	SortBy        string                   `json:"sort_by"`
	SortOrder     string                   `json:"sort_order"`
}

// OperationStatsFilter represents operation statistics filters
type OperationStatsFilter struct {
	ControllerID *uuid.UUID `json:"controller_id,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}

// Statistics structures

// ControllerStats represents controller statistics
type ControllerStats struct {
	TotalControllers   int                            `json:"total_controllers"`
	OnlineControllers  int                            `json:"online_controllers"`
	OfflineControllers int                            `json:"offline_controllers"`
	ErrorControllers   int                            `json:"error_controllers"`
	ByBrand            map[model.ControllerBrand]int  `json:"by_brand"`
	ByStatus           map[model.ControllerStatus]int `json:"by_status"`
}

// OperationStats represents operation statistics
type OperationStats struct {
	TotalOperations int                             `json:"total_operations"`
	SuccessfulOps   int                             `json:"successful_operations"`
	FailedOps       int                             `json:"failed_operations"`
	PendingOps      int                             `json:"pending_operations"`
	AvgDuration     time.Duration                   `json:"average_duration"`
	ByType          map[model.OperationType]int     `json:"by_type"`
	ByStatus        map[model.OperationStatus]int   `json:"by_status"`
	ByPriority      map[model.OperationPriority]int `json:"by_priority"`
}
