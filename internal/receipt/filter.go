package receipt

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/zombor/receipt-tracker/internal/scanning"
)

// SortField selects the ordering applied by a Filter
type SortField string

const (
	SortNone     SortField = ""
	SortDate     SortField = "date"
	SortAmount   SortField = "amount"
	SortMerchant SortField = "merchant"
)

// Filter narrows and orders a receipt list the way the dashboard does
type Filter struct {
	Category  scanning.Category
	Search    string
	From      string // inclusive ISO date
	To        string // inclusive ISO date
	MinAmount *float64
	MaxAmount *float64
	Sort      SortField
	Ascending bool
}

// ParseFilter reads a Filter from query parameters:
// category, q, from, to, min, max, sort and order.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Category: scanning.Category(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("q")),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Sort:     SortField(q.Get("sort")),
	}

	if f.Category != "" && !f.Category.Valid() {
		return Filter{}, fmt.Errorf("unknown category %q", f.Category)
	}

	var err error
	if f.MinAmount, err = parseAmount(q, "min"); err != nil {
		return Filter{}, err
	}
	if f.MaxAmount, err = parseAmount(q, "max"); err != nil {
		return Filter{}, err
	}

	switch f.Sort {
	case SortNone, SortDate, SortAmount, SortMerchant:
	default:
		return Filter{}, fmt.Errorf("unknown sort field %q", f.Sort)
	}

	switch order := q.Get("order"); order {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return Filter{}, fmt.Errorf("unknown sort order %q", order)
	}

	return f, nil
}

func parseAmount(q url.Values, key string) (*float64, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	amount, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s amount %q", key, v)
	}
	return &amount, nil
}

// Apply returns the matching records. Without a sort field the input order is kept.
func (f Filter) Apply(records []*Record) []*Record {
	search := strings.ToLower(f.Search)

	out := make([]*Record, 0, len(records))
	for _, r := range records {
		p := r.ParsedData
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Merchant), search) &&
			!strings.Contains(strings.ToLower(string(p.Category)), search) {
			continue
		}
		if f.From != "" && p.Date < f.From {
			continue
		}
		if f.To != "" && p.Date > f.To {
			continue
		}
		if f.MinAmount != nil && p.Total < *f.MinAmount {
			continue
		}
		if f.MaxAmount != nil && p.Total > *f.MaxAmount {
			continue
		}
		out = append(out, r)
	}

	if f.Sort == SortNone {
		return out
	}

	less := f.lessFunc()
	sort.SliceStable(out, func(i, j int) bool {
		if f.Ascending {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

func (f Filter) lessFunc() func(a, b *Record) bool {
	switch f.Sort {
	case SortAmount:
		return func(a, b *Record) bool { return a.ParsedData.Total < b.ParsedData.Total }
	case SortMerchant:
		return func(a, b *Record) bool {
			return strings.ToLower(a.ParsedData.Merchant) < strings.ToLower(b.ParsedData.Merchant)
		}
	default:
		// ISO dates order lexicographically
		return func(a, b *Record) bool { return a.ParsedData.Date < b.ParsedData.Date }
	}
}
