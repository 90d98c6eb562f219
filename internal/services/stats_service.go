package services

import (
	"context"

	"github.com/isdelr/calcapi/internal/models"
	"gorm.io/gorm"
)

// StatsService counts stored records for the metrics updater.
type StatsService struct {
	db *gorm.DB
}

// NewStatsService creates a new StatsService.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// CountUsers returns the number of registered users.
func (s *StatsService) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

// CountCalculations returns the number of calculations grouped by type.
func (s *StatsService) CountCalculations(ctx context.Context) (map[models.CalculationType]int64, error) {
	var rows []struct {
		Type  models.CalculationType
		Total int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Calculation{}).
		Select("type, COUNT(*) AS total").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.CalculationType]int64, len(models.CalculationTypes))
	for _, t := range models.CalculationTypes {
		counts[t] = 0
	}
	for _, r := range rows {
		counts[r.Type] = r.Total
	}
	return counts, nil
}
