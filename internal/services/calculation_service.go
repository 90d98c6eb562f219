package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/isdelr/calcapi/internal/models"
	"gorm.io/gorm"
)

// CalculationServiceProvider defines the interface for calculation services.
// Every method is scoped to the owning user.
type CalculationServiceProvider interface {
	Create(ctx context.Context, ownerID, calcType string, inputs []float64) (models.Calculation, error)
	List(ctx context.Context, ownerID string) ([]models.Calculation, error)
	Get(ctx context.Context, ownerID, id string) (models.Calculation, error)
	Update(ctx context.Context, ownerID, id string, inputs []float64) (models.Calculation, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// CalculationService provides business logic for calculation records.
type CalculationService struct {
	db *gorm.DB
}

// NewCalculationService creates a new CalculationService.
func NewCalculationService(db *gorm.DB) *CalculationService {
	return &CalculationService{db: db}
}

// Create evaluates a new calculation and stores it for ownerID.
func (s *CalculationService) Create(ctx context.Context, ownerID, calcType string, inputs []float64) (models.Calculation, error) {
	calc, err := models.NewCalculation(calcType, ownerID, inputs)
	if err != nil {
		return models.Calculation{}, err
	}
	if err := s.db.WithContext(ctx).Create(calc).Error; err != nil {
		return models.Calculation{}, fmt.Errorf("failed to save calculation: %w", err)
	}
	return *calc, nil
}

// List returns the owner's calculations, newest first.
func (s *CalculationService) List(ctx context.Context, ownerID string) ([]models.Calculation, error) {
	calcs := []models.Calculation{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&calcs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	return calcs, nil
}

// Get returns one calculation. Records owned by someone else are reported as
// not found.
func (s *CalculationService) Get(ctx context.Context, ownerID, id string) (models.Calculation, error) {
	return s.findOwned(s.db.WithContext(ctx), ownerID, id)
}

// Update replaces the inputs of an owned calculation and recomputes its
// result using the stored type.
func (s *CalculationService) Update(ctx context.Context, ownerID, id string, inputs []float64) (models.Calculation, error) {
	var calc models.Calculation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		calc, err = s.findOwned(tx, ownerID, id)
		if err != nil {
			return err
		}
		if err := calc.SetInputs(inputs); err != nil {
			return err
		}
		return tx.Save(&calc).Error
	})
	if err != nil {
		return models.Calculation{}, err
	}
	return calc, nil
}

// Delete removes an owned calculation.
func (s *CalculationService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&models.Calculation{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete calculation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CalculationService) findOwned(db *gorm.DB, ownerID, id string) (models.Calculation, error) {
	var calc models.Calculation
	if _, err := uuid.Parse(id); err != nil {
		return calc, ErrNotFound
	}
	err := db.Where("id = ? AND user_id = ?", id, ownerID).First(&calc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return calc, ErrNotFound
		}
		return calc, fmt.Errorf("failed to load calculation: %w", err)
	}
	return calc, nil
}
