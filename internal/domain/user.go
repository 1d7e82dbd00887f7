package domain

// User and Address are owned by other parts of the platform; the checkout
// subsystem only does read-only lookups against them.
type User struct {
	ID    int64
	Email string
}

type Address struct {
	ID     int64
	UserID int64
	Line   string
	City   string
}
