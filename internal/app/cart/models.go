package cart

import "github.com/shopspring/decimal"

type Operation string

const (
	OpIncrease Operation = "increase"
	OpDecrease Operation = "decrease"
)

type CartLine struct {
	BookID   int64           `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
	Quantity int             `json:"quantity"`
}

type CartResponse struct {
	CartID     int64           `json:"cartId"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Books      []CartLine      `json:"books"`
}
