package scanning

import "context"

// Category is the spending category assigned to a receipt
type Category string

const (
	CategoryFood           Category = "Food"
	CategoryTravel         Category = "Travel"
	CategoryGrocery        Category = "Grocery"
	CategoryEntertainment  Category = "Entertainment"
	CategoryTransportation Category = "Transportation"
	CategoryShopping       Category = "Shopping"
	CategoryHealthcare     Category = "Healthcare"
	CategoryUtilities      Category = "Utilities"
	CategoryOther          Category = "Other"
)

// Categories lists every accepted category in display order
var Categories = []Category{
	CategoryFood,
	CategoryTravel,
	CategoryGrocery,
	CategoryEntertainment,
	CategoryTransportation,
	CategoryShopping,
	CategoryHealthcare,
	CategoryUtilities,
	CategoryOther,
}

// Valid reports whether c is one of the accepted categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Item is a single line item on a receipt
type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ParsedReceipt contains the structured data returned by the structuring call
type ParsedReceipt struct {
	Merchant      string   `json:"merchant"`
	Date          string   `json:"date"` // passed through as returned, normally YYYY-MM-DD
	Items         []Item   `json:"items"`
	Subtotal      float64  `json:"subtotal"`
	Tax           float64  `json:"tax"`
	Total         float64  `json:"total"`
	Category      Category `json:"category"`
	PaymentMethod string   `json:"paymentMethod,omitempty"`
}

// Scanner defines the two external calls used to read a receipt
type Scanner interface {
	// ExtractText returns the raw text found in a receipt image/PDF
	ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// StructureReceipt turns raw receipt text into the model's JSON reply
	StructureReceipt(ctx context.Context, rawText string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
