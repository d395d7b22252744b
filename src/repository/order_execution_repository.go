package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"riskexecutor/src/model"
)

// OrderExecutionRepository appends and reads the order audit trail.
type OrderExecutionRepository struct {
	db *gorm.DB
}

func NewOrderExecutionRepository(db *gorm.DB) *OrderExecutionRepository {
	return &OrderExecutionRepository{db: db}
}

// RecordOrder snapshots order into a new execution log row.
func (r *OrderExecutionRepository) RecordOrder(
	ctx context.Context,
	order model.Order,
	event string,
	reason string,
) error {

	entry := model.NewOrderExecutionLog(order, event, reason)

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderExecutionRepository",
		"op":       "RecordOrder",
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"event":    event,
	}).Debug("Recording order event")

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderExecutionRepository",
			"op":       "RecordOrder",
			"order_id": order.ID,
		}).WithError(err).Error("Failed to record order event")

		return err
	}

	return nil
}

// FindByOrderID returns the events of one order, oldest first.
func (r *OrderExecutionRepository) FindByOrderID(
	ctx context.Context,
	orderID string,
) ([]model.OrderExecutionLog, error) {

	var logs []model.OrderExecutionLog

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&logs).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderExecutionRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch order events")

		return nil, err
	}

	return logs, nil
}

// FindLatest returns the newest events, optionally for one symbol.
func (r *OrderExecutionRepository) FindLatest(
	ctx context.Context,
	symbol string,
	limit int,
) ([]model.OrderExecutionLog, error) {

	if limit <= 0 {
		limit = 20
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "OrderExecutionRepository",
		"op":     "FindLatest",
		"symbol": symbol,
		"limit":  limit,
	}).Debug("Fetching latest order events")

	query := r.db.WithContext(ctx)
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var logs []model.OrderExecutionLog
	if err := query.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "OrderExecutionRepository",
			"op":     "FindLatest",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch latest order events")

		return nil, err
	}

	return logs, nil
}
