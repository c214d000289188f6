package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/sweet-shop/internal/domain/models"
	"github.com/linemk/sweet-shop/internal/storage"
)

// OrderConfig передаётся в конструктор явно, глобальных настроек нет.
type OrderConfig struct {
	// TxTimeout ограничивает всю транзакцию оформления заказа, 0 — без ограничения
	TxTimeout time.Duration
}

// OrderCache — кэш материализованных заказов. Ошибка Get означает промах.
// Set пишет безусловно после изменения заказа, Fill заполняет промах и не
// перетирает уже лежащую запись.
type OrderCache interface {
	Get(ctx context.Context, id int64) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Fill(ctx context.Context, order *models.Order) error
	Invalidate(ctx context.Context, id int64) error
}

// EventPublisher публикует доменные события после коммита.
type EventPublisher interface {
	OrderPlaced(ctx context.Context, order *models.Order) error
	OrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error
}

type OrderService interface {
	PlaceOrder(ctx context.Context, caller models.Caller, items []LineRequest) (*models.Order, error)
	ListOrders(ctx context.Context, caller models.Caller) ([]*models.Order, error)
	GetOrder(ctx context.Context, caller models.Caller, orderID int64) (*models.Order, error)
	SetOrderStatus(ctx context.Context, caller models.Caller, orderID int64, status string) (*models.Order, error)
}

type orderService struct {
	log       *slog.Logger
	db        *sql.DB
	cfg       OrderConfig
	sweetRepo storage.SweetStorage
	orderRepo storage.OrderStorage
	cache     OrderCache
	events    EventPublisher
}

// NewOrderService собирает координатор заказов. cache и events могут быть nil.
func NewOrderService(
	log *slog.Logger,
	db *sql.DB,
	cfg OrderConfig,
	sweetRepo storage.SweetStorage,
	orderRepo storage.OrderStorage,
	cache OrderCache,
	events EventPublisher,
) OrderService {
	if cache == nil {
		cache = noopCache{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &orderService{
		log:       log,
		db:        db,
		cfg:       cfg,
		sweetRepo: sweetRepo,
		orderRepo: orderRepo,
		cache:     cache,
		events:    events,
	}
}

// PlaceOrder проверяет позиции, фиксирует цены и в одной транзакции создаёт заказ,
// его позиции и списывает остатки. Если что-то идет не так, транзакция откатывается целиком.
func (s *orderService) PlaceOrder(ctx context.Context, caller models.Caller, items []LineRequest) (*models.Order, error) {
	const op = "service.OrderService.PlaceOrder"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", caller.UserID),
		slog.Int("lines", len(items)),
	)

	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyOrder)
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidQuantity)
		}
	}

	logger.Info("starting order transaction")

	txCtx := ctx
	if s.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, s.cfg.TxTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(txCtx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w: %w", op, ErrStorageFailure, err)
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.SweetID)
	}

	// строки товаров остаются заблокированными до коммита
	catalog, err := s.sweetRepo.LockSweetsTx(txCtx, tx, ids)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to lock sweets", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock sweets: %w: %w", op, ErrStorageFailure, err)
	}

	priced, err := ValidateOrder(items, catalog)
	if err != nil {
		s.rollback(tx, logger)
		logger.Warn("order rejected", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	order, err := s.orderRepo.CreateOrderTx(txCtx, tx, caller.UserID, priced.Total)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w: %w", op, ErrStorageFailure, err)
	}

	for _, line := range priced.Lines {
		item, err := s.orderRepo.CreateOrderItemTx(txCtx, tx, order.ID, line.Sweet.ID, line.Quantity, line.UnitPrice)
		if err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to create order item", slog.Int64("sweetID", line.Sweet.ID), slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create order item: %w: %w", op, ErrStorageFailure, err)
		}

		if err := s.sweetRepo.DecrementStockTx(txCtx, tx, line.Sweet.ID, line.Quantity); err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to decrement stock", slog.Int64("sweetID", line.Sweet.ID), slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to decrement stock: %w: %w", op, ErrStorageFailure, err)
		}

		item.SweetName = line.Sweet.Name
		order.Items = append(order.Items, *item)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w: %w", op, ErrStorageFailure, err)
	}

	logger.Info("order placed",
		slog.Int64("orderID", order.ID),
		slog.String("total", order.TotalPrice.StringFixed(2)),
	)

	if err := s.cache.Set(ctx, order); err != nil {
		logger.Warn("failed to cache order", slog.Any("error", err))
	}
	if err := s.events.OrderPlaced(ctx, order); err != nil {
		logger.Warn("failed to publish order placed event", slog.Any("error", err))
	}

	return order, nil
}

// SetOrderStatus перезаписывает статус заказа. Доступно только администратору.
// Переходы вне жизненного цикла не запрещены, но попадают в лог.
func (s *orderService) SetOrderStatus(ctx context.Context, caller models.Caller, orderID int64, status string) (*models.Order, error) {
	const op = "service.OrderService.SetOrderStatus"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", caller.UserID),
		slog.Int64("orderID", orderID),
	)

	if !caller.IsAdmin {
		logger.Warn("status change denied")
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	next, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%s: %q: %w", op, status, ErrInvalidStatus)
	}

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, s.mapReadError(op, logger, err)
	}

	previous := order.Status
	if !models.CanTransition(previous, next) {
		logger.Warn("off-lifecycle status transition",
			slog.String("from", string(previous)),
			slog.String("to", string(next)),
		)
	}

	updatedAt, err := s.orderRepo.UpdateOrderStatus(ctx, orderID, next)
	if err != nil {
		return nil, s.mapReadError(op, logger, err)
	}
	order.Status = next
	order.UpdatedAt = updatedAt

	logger.Info("order status updated",
		slog.String("from", string(previous)),
		slog.String("to", string(next)),
	)

	// свежий снимок, а не удаление: иначе параллельный GetOrder вернёт в кэш старый статус
	if err := s.cache.Set(ctx, order); err != nil {
		logger.Warn("failed to cache updated order", slog.Any("error", err))
		if err := s.cache.Invalidate(ctx, orderID); err != nil {
			logger.Warn("failed to invalidate cached order", slog.Any("error", err))
		}
	}
	if err := s.events.OrderStatusChanged(ctx, order, previous); err != nil {
		logger.Warn("failed to publish status changed event", slog.Any("error", err))
	}

	return order, nil
}

// mapReadError переводит ошибки хранилища в ошибки сервиса
func (s *orderService) mapReadError(op string, logger *slog.Logger, err error) error {
	if errors.Is(err, storage.ErrOrderNotFound) {
		return fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}
	logger.Error("storage request failed", slog.Any("error", err))
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

func (s *orderService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, int64) (*models.Order, error) {
	return nil, errors.New("cache disabled")
}
func (noopCache) Set(context.Context, *models.Order) error { return nil }
func (noopCache) Fill(context.Context, *models.Order) error { return nil }
func (noopCache) Invalidate(context.Context, int64) error { return nil }

type noopPublisher struct{}

func (noopPublisher) OrderPlaced(context.Context, *models.Order) error { return nil }
func (noopPublisher) OrderStatusChanged(context.Context, *models.Order, models.OrderStatus) error {
	return nil
}
