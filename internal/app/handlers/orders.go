package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/sweet-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/sweet-shop/internal/service"
)

// CreateOrderRequest — тело POST /api/orders. Пустой список позиций отклоняет сервис.
type CreateOrderRequest struct {
	Items []service.LineRequest `json:"items" validate:"dive"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateOrderHandler обрабатывает POST /api/orders
func CreateOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		// Извлекаем пользователя из контекста (установленный JWT middleware)
		caller, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("caller not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req CreateOrderRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "validation error")
			return
		}

		order, err := orders.PlaceOrder(r.Context(), caller, req.Items)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, order)
	}
}

// ListOrdersHandler обрабатывает GET /api/orders
func ListOrdersHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ListOrdersHandler"))

		caller, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		list, err := orders.ListOrders(r.Context(), caller)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, list)
	}
}

// GetOrderHandler обрабатывает GET /api/orders/{id}
func GetOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.GetOrderHandler"))

		caller, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "invalid order id")
			return
		}

		order, err := orders.GetOrder(r.Context(), caller, id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, order)
	}
}

// UpdateOrderStatusHandler обрабатывает PATCH /api/orders/{id}/status
func UpdateOrderStatusHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.UpdateOrderStatusHandler"))

		caller, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "invalid order id")
			return
		}

		var req UpdateStatusRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "validation error")
			return
		}

		order, err := orders.SetOrderStatus(r.Context(), caller, id, req.Status)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, order)
	}
}

// HealthHandler обрабатывает GET /healthz
func HealthHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, log, http.StatusOK, map[string]string{"status": "ok"})
	}
}
