package models

import (
	"errors"
	"strings"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

var ErrInvalidStatus = errors.New("invalid order status")

// AllStatuses в порядке жизненного цикла
var AllStatuses = []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// ParseOrderStatus возвращает каноническое название статуса (регистр не важен)
func ParseOrderStatus(s string) (OrderStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range AllStatuses {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// IsTerminal — из Delivered и Cancelled штатных переходов нет
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition описывает штатный жизненный цикл заказа.
// Смена статуса админом его не требует, см. OrderService.SetOrderStatus.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}
