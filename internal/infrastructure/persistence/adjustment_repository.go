package persistence

import (
	"context"
	"errors"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAdjustmentRepository implements AdjustmentRepository using GORM
type GormAdjustmentRepository struct {
	db *gorm.DB
}

// NewGormAdjustmentRepository creates a new GormAdjustmentRepository
func NewGormAdjustmentRepository(db *gorm.DB) *GormAdjustmentRepository {
	return &GormAdjustmentRepository{db: db}
}

// FindByID finds an adjustment by its ID
func (r *GormAdjustmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Adjustment, error) {
	var model models.AdjustmentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoice finds all adjustments bound to an invoice
func (r *GormAdjustmentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]billing.Adjustment, error) {
	var adjustmentModels []models.AdjustmentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("applied_at ASC").
		Find(&adjustmentModels).Error; err != nil {
		return nil, err
	}
	return toDomainAdjustments(adjustmentModels), nil
}

// FindUnbilledByCustomer returns adjustments still awaiting the next billing run
func (r *GormAdjustmentRepository) FindUnbilledByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.Adjustment, error) {
	var adjustmentModels []models.AdjustmentModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND invoice_id IS NULL", customerID).
		Order("applied_at ASC").
		Find(&adjustmentModels).Error; err != nil {
		return nil, err
	}
	return toDomainAdjustments(adjustmentModels), nil
}

// Save creates or updates an adjustment
func (r *GormAdjustmentRepository) Save(ctx context.Context, adjustment *billing.Adjustment) error {
	model := models.AdjustmentModelFromDomain(adjustment)
	return r.db.WithContext(ctx).Save(model).Error
}

func toDomainAdjustments(adjustmentModels []models.AdjustmentModel) []billing.Adjustment {
	adjustments := make([]billing.Adjustment, len(adjustmentModels))
	for i := range adjustmentModels {
		adjustments[i] = *adjustmentModels[i].ToDomain()
	}
	return adjustments
}

// Ensure GormAdjustmentRepository implements AdjustmentRepository
var _ billing.AdjustmentRepository = (*GormAdjustmentRepository)(nil)
