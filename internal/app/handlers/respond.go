package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/linemk/sweet-shop/internal/service"
)

var validate = validator.New()

// ErrorResponse — тело ответа при ошибке
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, status int, detail string) {
	writeJSON(w, log, status, ErrorResponse{Detail: detail})
}

// errorStatus переводит ошибку сервиса в HTTP-статус и текст для клиента.
// Внутренние подробности наружу не отдаются.
func errorStatus(err error) (int, string) {
	var (
		stockErr       *service.InsufficientStockError
		unavailableErr *service.ProductUnavailableError
	)
	switch {
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, stockErr.Error()
	case errors.As(err, &unavailableErr):
		return http.StatusNotFound, unavailableErr.Error()
	case errors.Is(err, service.ErrEmptyOrder):
		return http.StatusBadRequest, service.ErrEmptyOrder.Error()
	case errors.Is(err, service.ErrInvalidQuantity):
		return http.StatusBadRequest, service.ErrInvalidQuantity.Error()
	case errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest, service.ErrInvalidStatus.Error()
	case errors.Is(err, service.ErrInvalidSweet):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrSweetExists):
		return http.StatusBadRequest, service.ErrSweetExists.Error()
	case errors.Is(err, service.ErrUserExists):
		return http.StatusBadRequest, service.ErrUserExists.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound, service.ErrOrderNotFound.Error()
	case errors.Is(err, service.ErrSweetNotFound):
		return http.StatusNotFound, service.ErrSweetNotFound.Error()
	case errors.Is(err, service.ErrSweetInUse):
		return http.StatusConflict, service.ErrSweetInUse.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, service.ErrInvalidCredentials.Error()
	case errors.Is(err, service.ErrInactiveUser):
		return http.StatusBadRequest, service.ErrInactiveUser.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, detail := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err))
	} else {
		log.Warn("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeError(w, log, status, detail)
}

// idParam достаёт положительный числовой параметр пути
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeAndValidate разбирает JSON тело и проверяет теги validate
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
