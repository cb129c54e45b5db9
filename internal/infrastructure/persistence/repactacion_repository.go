package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRepactacionRepository implements RepactacionRepository using GORM
type GormRepactacionRepository struct {
	db *gorm.DB
}

// NewGormRepactacionRepository creates a new GormRepactacionRepository
func NewGormRepactacionRepository(db *gorm.DB) *GormRepactacionRepository {
	return &GormRepactacionRepository{db: db}
}

// FindByID finds a plan by its ID
func (r *GormRepactacionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.RepactacionPlan, error) {
	var model models.RepactacionPlanModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCustomer returns every plan ever agreed with a customer
func (r *GormRepactacionRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.RepactacionPlan, error) {
	var planModels []models.RepactacionPlanModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("start_date ASC").
		Find(&planModels).Error; err != nil {
		return nil, err
	}
	return toDomainPlans(planModels), nil
}

// FindCurrentByCustomer returns plans not yet exhausted as of the period.
// Exhaustion is month-granular, so the SQL filter is a coarse prefilter and
// the domain check decides.
func (r *GormRepactacionRepository) FindCurrentByCustomer(ctx context.Context, customerID uuid.UUID, period time.Time) ([]billing.RepactacionPlan, error) {
	plans, err := r.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	current := make([]billing.RepactacionPlan, 0, len(plans))
	for i := range plans {
		if !plans[i].IsExhausted(period) {
			current = append(current, plans[i])
		}
	}
	return current, nil
}

// Save creates or updates a plan
func (r *GormRepactacionRepository) Save(ctx context.Context, plan *billing.RepactacionPlan) error {
	model := models.RepactacionPlanModelFromDomain(plan)
	return r.db.WithContext(ctx).Save(model).Error
}

func toDomainPlans(planModels []models.RepactacionPlanModel) []billing.RepactacionPlan {
	plans := make([]billing.RepactacionPlan, len(planModels))
	for i := range planModels {
		plans[i] = *planModels[i].ToDomain()
	}
	return plans
}

// Ensure GormRepactacionRepository implements RepactacionRepository
var _ billing.RepactacionRepository = (*GormRepactacionRepository)(nil)
