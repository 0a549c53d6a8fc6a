package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Address là một object có cấu trúc để lưu thông tin địa chỉ.
type Address struct {
	FullText  string  `bson:"fullText" json:"fullText"`
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// ParsePrice parses a decimal price string stored in Mongo/JSON.
// Prices are stored as strings: mongo-driver has no codec for
// decimal.Decimal, and float64 is not acceptable for money.
func ParsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return d, nil
}
