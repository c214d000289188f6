package models

// User представляет пользователя
type User struct {
	ID       int64
	Email    string
	PassHash []byte
	IsAdmin  bool
	IsActive bool
}

// Caller — аутентифицированный пользователь, от имени которого выполняется запрос.
// Заполняется JWT middleware и явно передаётся в сервисный слой.
type Caller struct {
	UserID  int64
	IsAdmin bool
}
