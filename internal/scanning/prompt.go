package scanning

import "strings"

// extractionPrompt is sent with the receipt image on the first call
const extractionPrompt = "Extract all the text from this receipt image. Return only the raw text without any formatting or interpretation."

const (
	// structuringTemperature keeps the structuring call near-deterministic
	structuringTemperature = 0.1
	maxResponseTokens      = 1000
)

const structuringInstructions = `Extract the following information and return it as valid JSON:
- merchant: The name of the store/merchant
- date: The date in YYYY-MM-DD format
- items: Array of objects with name and price for each item
- subtotal: The subtotal amount (number)
- tax: The tax amount (number)
- total: The total amount (number)
- category: One of: Food, Travel, Grocery, Entertainment, Transportation, Shopping, Healthcare, Utilities, Other
- paymentMethod: The payment method if available (optional)

Example response format:
{
  "merchant": "Chipotle",
  "date": "2024-01-15",
  "items": [
    {"name": "Burrito", "price": 9.99},
    {"name": "Drink", "price": 2.00}
  ],
  "subtotal": 11.99,
  "tax": 0.85,
  "total": 12.84,
  "category": "Food",
  "paymentMethod": "Credit Card"
}

Return only the JSON, no additional text.`

// buildStructuringPrompt embeds the extracted text into the structuring prompt
func buildStructuringPrompt(rawText string) string {
	var b strings.Builder
	b.WriteString("Here's a receipt:\n")
	b.WriteString(rawText)
	b.WriteString("\n\n")
	b.WriteString(structuringInstructions)
	return b.String()
}
