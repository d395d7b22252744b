package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"riskexecutor/src/model"
)

// ExceptionRepository handles persistence of cycle failures.
type ExceptionRepository struct {
	db *gorm.DB
}

// NewExceptionRepository creates a new repository instance.
func NewExceptionRepository(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create persists a new exception in the database.
func (r *ExceptionRepository) Create(
	ctx context.Context,
	exc *model.Exception,
) error {

	logger.WithFields(map[string]interface{}{
		"service": exc.Service,
		"module":  exc.Module,
		"method":  exc.Method,
		"level":   exc.Level,
	}).Debug("Persisting system exception")

	return r.db.WithContext(ctx).Create(exc).Error
}

// FindLatest returns the newest exceptions first.
func (r *ExceptionRepository) FindLatest(
	ctx context.Context,
	limit int,
) ([]model.Exception, error) {

	if limit <= 0 {
		limit = 20
	}

	var out []model.Exception
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "ExceptionRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch exceptions")

		return nil, err
	}

	return out, nil
}
