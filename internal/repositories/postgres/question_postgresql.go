package postgres

import (
	"context"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"gorm.io/gorm"
)

// QuestionPostgreSQL implements repositories.QuestionRepository using GORM.
type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return q.db.WithContext(ctx).CreateInBatches(questions, 100).Error
}

func (q *QuestionPostgreSQL) GetByTestAndStage(ctx context.Context, testCode string, stage models.DifficultyTier) ([]models.Question, error) {
	var questions []models.Question
	err := q.db.WithContext(ctx).
		Where("test_code = ? AND stage = ?", testCode, stage).
		Order("position ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) GetByTest(ctx context.Context, testCode string) ([]models.Question, error) {
	var questions []models.Question
	err := q.db.WithContext(ctx).
		Where("test_code = ?", testCode).
		Order("stage ASC, position ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// ReplaceForTest swaps the full question set of a test in one transaction so a
// concurrent reader never observes a half-written pool.
func (q *QuestionPostgreSQL) ReplaceForTest(ctx context.Context, testCode string, questions []*models.Question) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_code = ?", testCode).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		return tx.CreateInBatches(questions, 100).Error
	})
}

func (q *QuestionPostgreSQL) CountByStage(ctx context.Context, testCode string) (map[models.DifficultyTier]int, error) {
	var rows []struct {
		Stage models.DifficultyTier
		Count int
	}
	err := q.db.WithContext(ctx).Model(&models.Question{}).
		Select("stage, COUNT(*) as count").
		Where("test_code = ?", testCode).
		Group("stage").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.DifficultyTier]int, len(rows))
	for _, row := range rows {
		counts[row.Stage] = row.Count
	}
	return counts, nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := q.db.WithContext(ctx).Delete(&models.Question{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
