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

// GormSubsidyRepository implements SubsidyRepository using GORM
type GormSubsidyRepository struct {
	db *gorm.DB
}

// NewGormSubsidyRepository creates a new GormSubsidyRepository
func NewGormSubsidyRepository(db *gorm.DB) *GormSubsidyRepository {
	return &GormSubsidyRepository{db: db}
}

// FindClassByID finds a subsidy class by its ID
func (r *GormSubsidyRepository) FindClassByID(ctx context.Context, id uuid.UUID) (*billing.SubsidyClass, error) {
	var model models.SubsidyClassModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindClassByCode finds a subsidy class by its numeric code
func (r *GormSubsidyRepository) FindClassByCode(ctx context.Context, code int) (*billing.SubsidyClass, error) {
	var model models.SubsidyClassModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllClasses returns every configured subsidy class
func (r *GormSubsidyRepository) FindAllClasses(ctx context.Context) ([]billing.SubsidyClass, error) {
	var classModels []models.SubsidyClassModel
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&classModels).Error; err != nil {
		return nil, err
	}
	classes := make([]billing.SubsidyClass, len(classModels))
	for i := range classModels {
		classes[i] = *classModels[i].ToDomain()
	}
	return classes, nil
}

// SaveClass creates or updates a subsidy class
func (r *GormSubsidyRepository) SaveClass(ctx context.Context, class *billing.SubsidyClass) error {
	model := models.SubsidyClassModelFromDomain(class)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindActiveAssignment returns the assignment in force for the customer on
// the given date. Ranges are half-open: [effective_from, effective_to).
func (r *GormSubsidyRepository) FindActiveAssignment(ctx context.Context, customerID uuid.UUID, on time.Time) (*billing.SubsidyAssignment, error) {
	var model models.SubsidyAssignmentModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)",
			customerID, on, on).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAssignmentsByCustomer returns all assignments ever recorded for a customer
func (r *GormSubsidyRepository) FindAssignmentsByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.SubsidyAssignment, error) {
	var assignmentModels []models.SubsidyAssignmentModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("effective_from ASC").
		Find(&assignmentModels).Error; err != nil {
		return nil, err
	}
	assignments := make([]billing.SubsidyAssignment, len(assignmentModels))
	for i := range assignmentModels {
		assignments[i] = *assignmentModels[i].ToDomain()
	}
	return assignments, nil
}

// SaveAssignment creates or updates a subsidy assignment
func (r *GormSubsidyRepository) SaveAssignment(ctx context.Context, assignment *billing.SubsidyAssignment) error {
	model := models.SubsidyAssignmentModelFromDomain(assignment)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormSubsidyRepository implements SubsidyRepository
var _ billing.SubsidyRepository = (*GormSubsidyRepository)(nil)
