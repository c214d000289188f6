package service

import (
	"errors"
	"fmt"

	"github.com/linemk/sweet-shop/internal/domain/models"
)

var (
	ErrEmptyOrder        = errors.New("order must contain at least one item")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrProductNotFound   = errors.New("sweet not found or unavailable")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStatus     = models.ErrInvalidStatus
	ErrForbidden         = errors.New("not authorized to access this order")
	ErrOrderNotFound     = errors.New("order not found")
	// ErrStorageFailure — сбой при записи, транзакция откатана целиком
	ErrStorageFailure = errors.New("storage failure")

	ErrSweetNotFound      = errors.New("sweet not found")
	ErrSweetExists        = errors.New("sweet with this name already exists")
	ErrSweetInUse         = errors.New("sweet is referenced by existing orders")
	ErrInvalidSweet       = errors.New("invalid sweet")
	ErrUserExists         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInactiveUser       = errors.New("inactive user")
)

// ProductUnavailableError — товара нет в каталоге или он снят с продажи.
type ProductUnavailableError struct {
	SweetID int64
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("sweet with ID %d not found or unavailable", e.SweetID)
}

func (e *ProductUnavailableError) Unwrap() error { return ErrProductNotFound }

// InsufficientStockError несёт запрошенное и доступное количество.
type InsufficientStockError struct {
	SweetID   int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
