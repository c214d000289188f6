package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/sweet-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/sweet-shop/internal/service"
)

// ListSweetsHandler обрабатывает GET /api/sweets
func ListSweetsHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ListSweetsHandler"))

		sweets, err := catalog.ListSweets(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, sweets)
	}
}

// GetSweetHandler обрабатывает GET /api/sweets/{id}
func GetSweetHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.GetSweetHandler"))

		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "invalid sweet id")
			return
		}

		sweet, err := catalog.GetSweet(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, sweet)
	}
}

// CreateSweetHandler обрабатывает POST /api/sweets (только админ)
func CreateSweetHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CreateSweetHandler"))

		caller, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req service.SweetInput
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "validation error")
			return
		}

		sweet, err := catalog.CreateSweet(r.Context(), caller, req)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, sweet)
	}
}

// UpdateSweetHandler обрабатывает PUT /api/sweets/{id}, переданные поля обновляются, остальные не трогаются
func UpdateSweetHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.UpdateSweetHandler"))

		caller, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "invalid sweet id")
			return
		}

		var req service.SweetPatch
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "validation error")
			return
		}

		sweet, err := catalog.UpdateSweet(r.Context(), caller, id, req)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, sweet)
	}
}

// DeleteSweetHandler обрабатывает DELETE /api/sweets/{id}
func DeleteSweetHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.DeleteSweetHandler"))

		caller, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "invalid sweet id")
			return
		}

		if err := catalog.DeleteSweet(r.Context(), caller, id); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
