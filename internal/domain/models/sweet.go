package models

import "github.com/shopspring/decimal"

// Sweet представляет товар каталога
type Sweet struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"` // уникальное
	Category      string          `json:"category"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"` // никогда не уходит в минус
	IsAvailable   bool            `json:"is_available"`
}
