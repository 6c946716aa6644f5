package postgres

import (
	"context"
	"errors"

	"github.com/edadapt/assessment-service/internal/repositories"
	"gorm.io/gorm"
)

// Repository is the Postgres-backed aggregate of all entity repositories.
type Repository struct {
	db *gorm.DB

	test     repositories.TestRepository
	question repositories.QuestionRepository
	result   repositories.ResultRepository
	user     repositories.UserRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{
		db:       db,
		test:     NewTestPostgreSQL(db),
		question: NewQuestionPostgreSQL(db),
		result:   NewResultPostgreSQL(db),
		user:     NewUserPostgreSQL(db),
	}
}

func (r *Repository) Test() repositories.TestRepository         { return r.test }
func (r *Repository) Question() repositories.QuestionRepository { return r.question }
func (r *Repository) Result() repositories.ResultRepository     { return r.result }
func (r *Repository) User() repositories.UserRepository         { return r.user }

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// notFound maps the gorm sentinel onto the repository-level error.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}
