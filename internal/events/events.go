package events

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"

	eventVersion = 1
)

// Envelope — общая обёртка всех событий заказа.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // id заказа
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedItem struct {
	SweetID         int64           `json:"sweet_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type OrderPlacedPayload struct {
	OrderID    int64             `json:"order_id"`
	OwnerID    int64             `json:"owner_id"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	Items      []OrderPlacedItem `json:"items"`
}

type OrderStatusChangedPayload struct {
	OrderID   int64     `json:"order_id"`
	OwnerID   int64     `json:"owner_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PartitionKey держит все события одного заказа в одной партиции
func PartitionKey(orderID int64) []byte {
	return []byte(strconv.FormatInt(orderID, 10))
}
