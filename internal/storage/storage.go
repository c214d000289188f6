package storage

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrSweetNotFound = errors.New("sweet not found")
	ErrSweetExists   = errors.New("sweet with this name already exists")
	ErrSweetInUse    = errors.New("sweet is referenced by existing orders")
	ErrOrderNotFound = errors.New("order not found")
	ErrUserExists    = errors.New("user already exists")
	// ErrStockConflict — условное списание не прошло: остаток изменился или строка заблокирована
	ErrStockConflict = errors.New("stock changed concurrently")
)

// коды ошибок postgres, см. https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	codeUniqueViolation      pq.ErrorCode = "23505"
	codeForeignKeyViolation  pq.ErrorCode = "23503"
	codeCheckViolation       pq.ErrorCode = "23514"
	codeSerializationFailure pq.ErrorCode = "40001"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
	codeLockNotAvailable     pq.ErrorCode = "55P03"
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// isContention — ошибки конкурентного доступа, которые откатывают транзакцию целиком
func isContention(err error) bool {
	switch pqCode(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeCheckViolation:
		return true
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}
