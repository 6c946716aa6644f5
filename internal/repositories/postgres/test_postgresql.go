package postgres

import (
	"context"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"gorm.io/gorm"
)

// TestPostgreSQL implements repositories.TestRepository using GORM.
type TestPostgreSQL struct {
	db *gorm.DB
}

func NewTestPostgreSQL(db *gorm.DB) repositories.TestRepository {
	return &TestPostgreSQL{db: db}
}

func (t *TestPostgreSQL) Create(ctx context.Context, test *models.Test) error {
	return t.db.WithContext(ctx).Create(test).Error
}

func (t *TestPostgreSQL) GetByCode(ctx context.Context, code string) (*models.Test, error) {
	var test models.Test
	err := t.db.WithContext(ctx).Where("code = ?", code).First(&test).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &test, nil
}

func (t *TestPostgreSQL) GetByCodes(ctx context.Context, codes []string) ([]*models.Test, error) {
	if len(codes) == 0 {
		return []*models.Test{}, nil
	}
	var tests []*models.Test
	err := t.db.WithContext(ctx).Where("code IN ?", codes).Find(&tests).Error
	if err != nil {
		return nil, err
	}
	return tests, nil
}

func (t *TestPostgreSQL) Update(ctx context.Context, test *models.Test) error {
	result := t.db.WithContext(ctx).Model(&models.Test{}).
		Where("code = ?", test.Code).
		Updates(test)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (t *TestPostgreSQL) Delete(ctx context.Context, code string) error {
	result := t.db.WithContext(ctx).Where("code = ?", code).Delete(&models.Test{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (t *TestPostgreSQL) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	query := t.db.WithContext(ctx).Model(&models.Test{})
	query = t.applyFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = t.applySortingAndPagination(query, filters)

	var tests []*models.Test
	if err := query.Find(&tests).Error; err != nil {
		return nil, 0, err
	}
	return tests, total, nil
}

func (t *TestPostgreSQL) GetByCreator(ctx context.Context, creatorID string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	query := t.db.WithContext(ctx).Model(&models.Test{}).Where("created_by = ?", creatorID)
	query = t.applyFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = t.applySortingAndPagination(query, filters)

	var tests []*models.Test
	if err := query.Find(&tests).Error; err != nil {
		return nil, 0, err
	}
	return tests, total, nil
}

func (t *TestPostgreSQL) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&models.Test{}).
		Where("code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t *TestPostgreSQL) applyFilters(query *gorm.DB, filters repositories.TestFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Subject != nil {
		query = query.Where("subject = ?", *filters.Subject)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

func (t *TestPostgreSQL) applySortingAndPagination(query *gorm.DB, filters repositories.TestFilters) *gorm.DB {
	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	sortOrder := filters.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(sortBy + " " + sortOrder)

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}
