package contextkeys

// Используем кастомный тип, чтобы избежать коллизий
type contextKey string

// DBContextKey - ключ, по которому хранится *gorm.DB (пул или транзакция) в context
const DBContextKey = contextKey("db")

// MemberIDKey - ключ gin.Context для ID участника из сессионного токена
const MemberIDKey = "memberID"
