package service

import (
	"github.com/linemk/sweet-shop/internal/domain/models"
	"github.com/shopspring/decimal"
)

// LineRequest — одна позиция заказа, как её прислал клиент.
type LineRequest struct {
	SweetID  int64 `json:"sweet_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

// PricedLine — проверенная позиция с зафиксированной ценой.
type PricedLine struct {
	Sweet     *models.Sweet
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

type PricedOrder struct {
	Lines []PricedLine
	Total decimal.Decimal
}

// ValidateOrder проверяет позиции по снимку каталога и считает итоговую сумму.
// Позиции проверяются в порядке отправки, возвращается первая ошибка.
// Одинаковые товары в нескольких строках проверяются по остатку после предыдущих строк.
func ValidateOrder(items []LineRequest, catalog map[int64]*models.Sweet) (*PricedOrder, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	reserved := make(map[int64]int, len(items))
	priced := &PricedOrder{
		Lines: make([]PricedLine, 0, len(items)),
		Total: decimal.Zero,
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}

		sweet, ok := catalog[item.SweetID]
		if !ok || sweet == nil || !sweet.IsAvailable {
			return nil, &ProductUnavailableError{SweetID: item.SweetID}
		}

		available := sweet.StockQuantity - reserved[item.SweetID]
		if item.Quantity > available {
			return nil, &InsufficientStockError{
				SweetID:   sweet.ID,
				Name:      sweet.Name,
				Requested: item.Quantity,
				Available: available,
			}
		}
		reserved[item.SweetID] += item.Quantity

		subtotal := sweet.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		priced.Lines = append(priced.Lines, PricedLine{
			Sweet:     sweet,
			Quantity:  item.Quantity,
			UnitPrice: sweet.Price,
			Subtotal:  subtotal,
		})
		priced.Total = priced.Total.Add(subtotal)
	}

	return priced, nil
}
