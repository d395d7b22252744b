package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"riskexecutor/src/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func TestOrderExecutionRepositoryRecordOrder(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewOrderExecutionRepository(mockDB)

	price := decimal.RequireFromString("99.5")
	order := model.Order{
		ID:          "cl-1",
		Symbol:      "AAPL",
		Side:        model.OrderSideBuy,
		Type:        model.OrderTypeLimit,
		Quantity:    100,
		Price:       &price,
		TimeInForce: model.TimeInForceDay,
		Status:      model.OrderStatusSubmitted,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "order_execution_logs"`)).
		WithArgs("cl-1", "AAPL", "BUY", "LIMIT", "DAY", int64(100), 99.5, int64(0), float64(0), model.OrderEventSubmitted, "SUBMITTED", "signal", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	if err := repo.RecordOrder(context.Background(), order, model.OrderEventSubmitted, "signal"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderExecutionRepositoryRecordOrderError(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewOrderExecutionRepository(mockDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "order_execution_logs"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.RecordOrder(context.Background(), model.Order{ID: "cl-2", Symbol: "AAPL"}, model.OrderEventCancelled, "")
	if err == nil {
		t.Fatalf("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderExecutionRepositoryFindByOrderID(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewOrderExecutionRepository(mockDB)

	createdAt := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "order_id", "symbol", "event", "status", "created_at"}).
		AddRow(1, "cl-1", "AAPL", model.OrderEventSubmitted, "SUBMITTED", createdAt).
		AddRow(2, "cl-1", "AAPL", model.OrderEventFilled, "FILLED", createdAt.Add(time.Second))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "order_execution_logs" WHERE order_id = $1 ORDER BY id ASC`)).
		WithArgs("cl-1").
		WillReturnRows(rows)

	logs, err := repo.FindByOrderID(context.Background(), "cl-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 2 || logs[0].Event != model.OrderEventSubmitted || logs[1].Event != model.OrderEventFilled {
		t.Fatalf("unexpected logs: %+v", logs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderExecutionRepositoryFindLatest(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewOrderExecutionRepository(mockDB)

	t.Run("all symbols with default limit", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "order_execution_logs" ORDER BY id DESC LIMIT $1`)).
			WithArgs(20).
			WillReturnRows(sqlmock.NewRows([]string{"id", "symbol"}).AddRow(3, "MSFT").AddRow(2, "AAPL"))

		logs, err := repo.FindLatest(context.Background(), "", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(logs) != 2 || logs[0].Symbol != "MSFT" {
			t.Fatalf("unexpected logs: %+v", logs)
		}
	})

	t.Run("filtered by symbol", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "order_execution_logs" WHERE symbol = $1 ORDER BY id DESC LIMIT $2`)).
			WithArgs("AAPL", 5).
			WillReturnRows(sqlmock.NewRows([]string{"id", "symbol"}).AddRow(2, "AAPL"))

		logs, err := repo.FindLatest(context.Background(), "AAPL", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(logs) != 1 {
			t.Fatalf("expected 1 log, got %d", len(logs))
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExceptionRepository(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewExceptionRepository(mockDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "exceptions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	exc := &model.Exception{Service: "risk_executor", Module: "scan_cycle", Method: "Scan", Message: "boom", Level: "error"}
	if err := repo.Create(context.Background(), exc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exc.ID != 7 {
		t.Fatalf("expected generated id 7, got %d", exc.ID)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "exceptions" ORDER BY id DESC LIMIT $1`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "module", "message"}).AddRow(7, "scan_cycle", "boom"))

	out, err := repo.FindLatest(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Module != "scan_cycle" {
		t.Fatalf("unexpected exceptions: %+v", out)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
