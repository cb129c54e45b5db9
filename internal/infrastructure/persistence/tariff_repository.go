package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTariffRepository implements TariffRepository using GORM
type GormTariffRepository struct {
	db *gorm.DB
}

// NewGormTariffRepository creates a new GormTariffRepository
func NewGormTariffRepository(db *gorm.DB) *GormTariffRepository {
	return &GormTariffRepository{db: db}
}

// FindEffectiveOn returns the schedule in force on the given date
func (r *GormTariffRepository) FindEffectiveOn(ctx context.Context, on time.Time) (*billing.TariffSchedule, error) {
	var model models.TariffScheduleModel
	if err := r.db.WithContext(ctx).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", on, on).
		Order("effective_from DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every tariff schedule, newest first
func (r *GormTariffRepository) FindAll(ctx context.Context) ([]billing.TariffSchedule, error) {
	var scheduleModels []models.TariffScheduleModel
	if err := r.db.WithContext(ctx).
		Order("effective_from DESC").
		Find(&scheduleModels).Error; err != nil {
		return nil, err
	}
	schedules := make([]billing.TariffSchedule, len(scheduleModels))
	for i := range scheduleModels {
		schedules[i] = *scheduleModels[i].ToDomain()
	}
	return schedules, nil
}

// Save creates or updates a tariff schedule
func (r *GormTariffRepository) Save(ctx context.Context, schedule *billing.TariffSchedule) error {
	model := models.TariffScheduleModelFromDomain(schedule)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormTariffRepository implements TariffRepository
var _ billing.TariffRepository = (*GormTariffRepository)(nil)
