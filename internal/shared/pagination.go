package shared

const (
	// DefaultListLimit applies when a query does not set a limit.
	DefaultListLimit = 200
	// MaxListLimit caps list queries.
	MaxListLimit = 5000
)

// ClampLimit normalises a requested list size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
