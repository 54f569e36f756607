// Package receipt talks to the external receipt-extraction service. The
// service is an opaque collaborator: it receives a receipt image and returns
// structured line items and adjustments. Extraction failures are expected and
// callers degrade to an empty item list.
package receipt

import "context"

// Item is one extracted line. TotalPrice covers all Quantity units.
type Item struct {
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
}

// ParsedReceipt is the structured result of extraction.
type ParsedReceipt struct {
	RestaurantName string  `json:"restaurantName"`
	Items          []Item  `json:"items"`
	Tax            float64 `json:"tax"`
	ServiceCharge  float64 `json:"serviceCharge"`
	Discount       float64 `json:"discount"`
}

// Parser extracts structured receipt data from an image.
type Parser interface {
	Parse(ctx context.Context, image []byte, contentType string) (*ParsedReceipt, error)
}
