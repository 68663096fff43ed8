package contextkeys

// Custom key type to avoid collisions with other context values.
type contextKey string

// DBContextKey is the key under which *gorm.DB is stored in a context.
const DBContextKey = contextKey("db")
