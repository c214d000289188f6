package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/sweet-shop/internal/domain/models"
)

// canViewOrder — заказ видит владелец или администратор
func canViewOrder(caller models.Caller, order *models.Order) bool {
	return caller.IsAdmin || order.OwnerID == caller.UserID
}

// listScope возвращает владельца, которым ограничен список заказов, и false для администратора
func listScope(caller models.Caller) (int64, bool) {
	if caller.IsAdmin {
		return 0, false
	}
	return caller.UserID, true
}

// ListOrders возвращает все заказы администратору и только свои заказы остальным.
func (s *orderService) ListOrders(ctx context.Context, caller models.Caller) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", caller.UserID))

	var (
		orders []*models.Order
		err    error
	)
	if ownerID, scoped := listScope(caller); scoped {
		orders, err = s.orderRepo.ListOrdersByOwner(ctx, ownerID)
	} else {
		orders, err = s.orderRepo.ListOrders(ctx)
	}
	if err != nil {
		logger.Error("failed to list orders", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
	}

	logger.Debug("orders listed", slog.Int("count", len(orders)), slog.Bool("admin", caller.IsAdmin))
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

// GetOrder сначала проверяет существование заказа, потом права на него.
func (s *orderService) GetOrder(ctx context.Context, caller models.Caller, orderID int64) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", caller.UserID),
		slog.Int64("orderID", orderID),
	)

	order, err := s.cache.Get(ctx, orderID)
	if err != nil || order == nil {
		order, err = s.orderRepo.GetOrderByID(ctx, orderID)
		if err != nil {
			return nil, s.mapReadError(op, logger, err)
		}
		if err := s.cache.Fill(ctx, order); err != nil {
			logger.Warn("failed to cache order", slog.Any("error", err))
		}
	}

	if !canViewOrder(caller, order) {
		logger.Warn("order access denied", slog.Int64("ownerID", order.OwnerID))
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	return order, nil
}
