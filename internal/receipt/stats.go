package receipt

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-tracker/internal/scanning"
)

// MonthlyAmount is the spending total for one YYYY-MM month
type MonthlyAmount struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// CategoryAmount is the spending total for one category
type CategoryAmount struct {
	Category scanning.Category `json:"category"`
	Amount   float64           `json:"amount"`
}

// Stats summarizes a set of receipts for the dashboard
type Stats struct {
	TotalSpent        float64          `json:"totalSpent"`
	TotalReceipts     int              `json:"totalReceipts"`
	MonthlySpending   []MonthlyAmount  `json:"monthlySpending"`
	CategoryBreakdown []CategoryAmount `json:"categoryBreakdown"`
}

// monthKey returns the YYYY-MM prefix of an ISO date
func monthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// ComputeStats aggregates totals over records. Months are sorted ascending;
// categories by amount descending, ties kept in the order first seen.
// Amounts are summed as decimals so repeated cents do not drift.
func ComputeStats(records []*Record) Stats {
	total := decimal.Zero

	monthTotals := make(map[string]decimal.Decimal)
	months := make([]string, 0)

	categoryTotals := make(map[scanning.Category]decimal.Decimal)
	categories := make([]scanning.Category, 0)

	for _, r := range records {
		amount := decimal.NewFromFloat(r.ParsedData.Total)
		total = total.Add(amount)

		month := monthKey(r.ParsedData.Date)
		if _, ok := monthTotals[month]; !ok {
			months = append(months, month)
		}
		monthTotals[month] = monthTotals[month].Add(amount)

		category := r.ParsedData.Category
		if _, ok := categoryTotals[category]; !ok {
			categories = append(categories, category)
		}
		categoryTotals[category] = categoryTotals[category].Add(amount)
	}

	sort.Strings(months)
	monthly := make([]MonthlyAmount, 0, len(months))
	for _, m := range months {
		monthly = append(monthly, MonthlyAmount{Month: m, Amount: monthTotals[m].InexactFloat64()})
	}

	breakdown := make([]CategoryAmount, 0, len(categories))
	for _, c := range categories {
		breakdown = append(breakdown, CategoryAmount{Category: c, Amount: categoryTotals[c].InexactFloat64()})
	}
	sort.SliceStable(breakdown, func(i, j int) bool {
		return categoryTotals[breakdown[i].Category].GreaterThan(categoryTotals[breakdown[j].Category])
	})

	return Stats{
		TotalSpent:        total.InexactFloat64(),
		TotalReceipts:     len(records),
		MonthlySpending:   monthly,
		CategoryBreakdown: breakdown,
	}
}
