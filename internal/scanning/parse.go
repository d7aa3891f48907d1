package scanning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when a model reply contains no text
var ErrEmptyResponse = errors.New("model returned an empty response")

type itemJSON struct {
	Name  *string  `json:"name"`
	Price *float64 `json:"price"`
}

// receiptJSON mirrors ParsedReceipt with pointers so missing fields can be detected
type receiptJSON struct {
	Merchant      *string      `json:"merchant"`
	Date          *string      `json:"date"`
	Items         *[]*itemJSON `json:"items"`
	Subtotal      *float64     `json:"subtotal"`
	Tax           *float64     `json:"tax"`
	Total         *float64     `json:"total"`
	Category      *Category    `json:"category"`
	PaymentMethod *string      `json:"paymentMethod"`
}

// stripCodeFence removes a surrounding markdown code block if present
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// ParseReceiptJSON decodes the structuring reply into a ParsedReceipt.
// Every field except paymentMethod is required and the category must be
// one of Categories. Totals and dates are passed through unchecked.
func ParseReceiptJSON(text string) (*ParsedReceipt, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var raw receiptJSON
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	var missing []string
	if raw.Merchant == nil {
		missing = append(missing, "merchant")
	}
	if raw.Date == nil {
		missing = append(missing, "date")
	}
	if raw.Items == nil {
		missing = append(missing, "items")
	} else {
		for i, item := range *raw.Items {
			if item == nil {
				missing = append(missing, fmt.Sprintf("items[%d]", i))
				continue
			}
			if item.Name == nil {
				missing = append(missing, fmt.Sprintf("items[%d].name", i))
			}
			if item.Price == nil {
				missing = append(missing, fmt.Sprintf("items[%d].price", i))
			}
		}
	}
	if raw.Subtotal == nil {
		missing = append(missing, "subtotal")
	}
	if raw.Tax == nil {
		missing = append(missing, "tax")
	}
	if raw.Total == nil {
		missing = append(missing, "total")
	}
	if raw.Category == nil {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if !raw.Category.Valid() {
		return nil, fmt.Errorf("invalid category %q", *raw.Category)
	}

	data := &ParsedReceipt{
		Merchant: *raw.Merchant,
		Date:     *raw.Date,
		Items:    make([]Item, 0, len(*raw.Items)),
		Subtotal: *raw.Subtotal,
		Tax:      *raw.Tax,
		Total:    *raw.Total,
		Category: *raw.Category,
	}
	for _, item := range *raw.Items {
		data.Items = append(data.Items, Item{Name: *item.Name, Price: *item.Price})
	}
	if raw.PaymentMethod != nil {
		data.PaymentMethod = *raw.PaymentMethod
	}

	return data, nil
}
