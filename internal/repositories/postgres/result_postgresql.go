package postgres

import (
	"context"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"gorm.io/gorm"
)

// ResultPostgreSQL implements repositories.ResultRepository using GORM.
// Results are write-once: there is no update path.
type ResultPostgreSQL struct {
	db *gorm.DB
}

func NewResultPostgreSQL(db *gorm.DB) repositories.ResultRepository {
	return &ResultPostgreSQL{db: db}
}

func (r *ResultPostgreSQL) Create(ctx context.Context, result *models.TestResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *ResultPostgreSQL) GetByAttemptID(ctx context.Context, attemptID string) (*models.TestResult, error) {
	var result models.TestResult
	err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&result).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &result, nil
}

func (r *ResultPostgreSQL) GetByStudent(ctx context.Context, studentID string, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TestResult{}).Where("student_id = ?", studentID)
	return r.listFiltered(query, filters)
}

func (r *ResultPostgreSQL) GetByTest(ctx context.Context, testCode string, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TestResult{}).Where("test_code = ?", testCode)
	return r.listFiltered(query, filters)
}

func (r *ResultPostgreSQL) HasCompleted(ctx context.Context, studentID, testCode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TestResult{}).
		Where("student_id = ? AND test_code = ?", studentID, testCode).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ResultPostgreSQL) GetTestStats(ctx context.Context, testCode string) (*repositories.TestStats, error) {
	var agg struct {
		TotalAttempts    int
		AverageScore     float64
		BestScore        int
		AverageTimeSpent float64
	}
	err := r.db.WithContext(ctx).Model(&models.TestResult{}).
		Select("COUNT(*) as total_attempts, COALESCE(AVG(score), 0) as average_score, COALESCE(MAX(score), 0) as best_score, COALESCE(AVG(time_spent), 0) as average_time_spent").
		Where("test_code = ?", testCode).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}

	var tierRows []struct {
		AssignedTier *models.DifficultyTier
		Count        int
	}
	err = r.db.WithContext(ctx).Model(&models.TestResult{}).
		Select("assigned_tier, COUNT(*) as count").
		Where("test_code = ? AND assigned_tier IS NOT NULL", testCode).
		Group("assigned_tier").
		Scan(&tierRows).Error
	if err != nil {
		return nil, err
	}

	stats := &repositories.TestStats{
		TotalAttempts:    agg.TotalAttempts,
		AverageScore:     agg.AverageScore,
		BestScore:        agg.BestScore,
		AverageTimeSpent: int(agg.AverageTimeSpent),
		TierBreakdown:    make(map[models.DifficultyTier]int, len(tierRows)),
	}
	for _, row := range tierRows {
		if row.AssignedTier != nil {
			stats.TierBreakdown[*row.AssignedTier] = row.Count
		}
	}
	return stats, nil
}

func (r *ResultPostgreSQL) listFiltered(query *gorm.DB, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	if filters.Tier != nil {
		query = query.Where("assigned_tier = ?", *filters.Tier)
	}
	if filters.DateFrom != nil {
		query = query.Where("completed_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("completed_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("completed_at DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var results []*models.TestResult
	if err := query.Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}
