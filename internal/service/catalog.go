package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/sweet-shop/internal/domain/models"
	"github.com/linemk/sweet-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// SweetInput — поля товара при создании.
type SweetInput struct {
	Name          string          `json:"name" validate:"required,max=255"`
	Category      string          `json:"category" validate:"required,max=100"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	IsAvailable   *bool           `json:"is_available"`
}

// SweetPatch — частичное обновление, nil поля не меняются.
type SweetPatch struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Category      *string          `json:"category" validate:"omitempty,min=1,max=100"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity" validate:"omitempty,gte=0"`
	IsAvailable   *bool            `json:"is_available"`
}

type CatalogService interface {
	ListSweets(ctx context.Context) ([]*models.Sweet, error)
	GetSweet(ctx context.Context, id int64) (*models.Sweet, error)
	CreateSweet(ctx context.Context, caller models.Caller, in SweetInput) (*models.Sweet, error)
	UpdateSweet(ctx context.Context, caller models.Caller, id int64, patch SweetPatch) (*models.Sweet, error)
	DeleteSweet(ctx context.Context, caller models.Caller, id int64) error
}

type catalogService struct {
	log       *slog.Logger
	db        *sql.DB
	sweetRepo storage.SweetStorage
}

func NewCatalogService(log *slog.Logger, db *sql.DB, sweetRepo storage.SweetStorage) CatalogService {
	return &catalogService{
		log:       log,
		db:        db,
		sweetRepo: sweetRepo,
	}
}

func validateSweet(s *models.Sweet) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSweet)
	}
	if !s.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidSweet)
	}
	if s.StockQuantity < 0 {
		return fmt.Errorf("%w: stock quantity must not be negative", ErrInvalidSweet)
	}
	return nil
}

func mapSweetError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrSweetNotFound):
		return fmt.Errorf("%s: %w", op, ErrSweetNotFound)
	case errors.Is(err, storage.ErrSweetExists):
		return fmt.Errorf("%s: %w", op, ErrSweetExists)
	case errors.Is(err, storage.ErrSweetInUse):
		return fmt.Errorf("%s: %w", op, ErrSweetInUse)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

func (s *catalogService) ListSweets(ctx context.Context) ([]*models.Sweet, error) {
	const op = "service.CatalogService.ListSweets"

	sweets, err := s.sweetRepo.ListSweets(ctx)
	if err != nil {
		s.log.Error("failed to list sweets", slog.String("op", op), slog.Any("error", err))
		return nil, mapSweetError(op, err)
	}
	if sweets == nil {
		sweets = []*models.Sweet{}
	}
	return sweets, nil
}

func (s *catalogService) GetSweet(ctx context.Context, id int64) (*models.Sweet, error) {
	const op = "service.CatalogService.GetSweet"

	sweet, err := s.sweetRepo.GetSweetByID(ctx, id)
	if err != nil {
		return nil, mapSweetError(op, err)
	}
	return sweet, nil
}

func (s *catalogService) CreateSweet(ctx context.Context, caller models.Caller, in SweetInput) (*models.Sweet, error) {
	const op = "service.CatalogService.CreateSweet"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", caller.UserID))

	if !caller.IsAdmin {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	sweet := &models.Sweet{
		Name:          strings.TrimSpace(in.Name),
		Category:      in.Category,
		Description:   in.Description,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		IsAvailable:   true,
	}
	if in.IsAvailable != nil {
		sweet.IsAvailable = *in.IsAvailable
	}
	if err := validateSweet(sweet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.sweetRepo.CreateSweet(ctx, sweet)
	if err != nil {
		logger.Warn("failed to create sweet", slog.Any("error", err))
		return nil, mapSweetError(op, err)
	}

	logger.Info("sweet created", slog.Int64("sweetID", created.ID), slog.String("name", created.Name))
	return created, nil
}

// UpdateSweet применяет частичное обновление под блокировкой строки,
// чтобы не затереть параллельное списание остатка заказом.
func (s *catalogService) UpdateSweet(ctx context.Context, caller models.Caller, id int64, patch SweetPatch) (*models.Sweet, error) {
	const op = "service.CatalogService.UpdateSweet"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", caller.UserID), slog.Int64("sweetID", id))

	if !caller.IsAdmin {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w: %w", op, ErrStorageFailure, err)
	}

	locked, err := s.sweetRepo.LockSweetsTx(ctx, tx, []int64{id})
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to lock sweet", slog.Any("error", err))
		return nil, mapSweetError(op, err)
	}
	sweet, ok := locked[id]
	if !ok {
		s.rollback(tx, logger)
		return nil, fmt.Errorf("%s: %w", op, ErrSweetNotFound)
	}

	applyPatch(sweet, patch)
	if err := validateSweet(sweet); err != nil {
		s.rollback(tx, logger)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sweetRepo.UpdateSweetTx(ctx, tx, sweet); err != nil {
		s.rollback(tx, logger)
		logger.Warn("failed to update sweet", slog.Any("error", err))
		return nil, mapSweetError(op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w: %w", op, ErrStorageFailure, err)
	}

	logger.Info("sweet updated")
	return sweet, nil
}

func applyPatch(sweet *models.Sweet, patch SweetPatch) {
	if patch.Name != nil {
		sweet.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Category != nil {
		sweet.Category = *patch.Category
	}
	if patch.Description != nil {
		sweet.Description = *patch.Description
	}
	if patch.Price != nil {
		sweet.Price = *patch.Price
	}
	if patch.StockQuantity != nil {
		sweet.StockQuantity = *patch.StockQuantity
	}
	if patch.IsAvailable != nil {
		sweet.IsAvailable = *patch.IsAvailable
	}
}

func (s *catalogService) DeleteSweet(ctx context.Context, caller models.Caller, id int64) error {
	const op = "service.CatalogService.DeleteSweet"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", caller.UserID), slog.Int64("sweetID", id))

	if !caller.IsAdmin {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.sweetRepo.DeleteSweet(ctx, id); err != nil {
		logger.Warn("failed to delete sweet", slog.Any("error", err))
		return mapSweetError(op, err)
	}

	logger.Info("sweet deleted")
	return nil
}

func (s *catalogService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}
