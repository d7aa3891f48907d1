package receipt

import (
	"time"

	"github.com/zombor/receipt-tracker/internal/scanning"
)

// Record is a scanned receipt as stored and served by the API
type Record struct {
	ID         string                 `json:"id"`
	ImageURL   string                 `json:"imageUrl"`
	ParsedData scanning.ParsedReceipt `json:"parsedData"`
	RawText    string                 `json:"rawText"`
	UploadedAt time.Time              `json:"uploadedAt"`
	Filename   string                 `json:"-"` // storage key of the uploaded file
}
