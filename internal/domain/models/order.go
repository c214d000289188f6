package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order представляет заказ пользователя вместе с позициями
type Order struct {
	ID         int64           `json:"id"`
	OwnerID    int64           `json:"owner_id"`
	OwnerEmail string          `json:"user_email,omitempty"` // заполняется через JOIN только для админа
	Status     OrderStatus     `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"` // считается один раз при создании
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Items      []OrderItem     `json:"items"`
}

// OrderItem — позиция заказа, цена зафиксирована на момент покупки
type OrderItem struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	SweetID         int64           `json:"sweet_id"`
	SweetName       string          `json:"name"` // заполняется через JOIN с таблицей sweets
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

// ItemsTotal пересчитывает сумму по позициям. Используется только для проверок,
// TotalPrice заказа никогда не перезаписывается.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.PriceAtPurchase.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
