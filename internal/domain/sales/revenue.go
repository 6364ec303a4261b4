package sales

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ozonelife/clinic/internal/platform/store"
)

type RevenuePoint struct {
	Date  store.Date `json:"date"`
	Total float64    `json:"total"`
	Count int        `json:"count"`
}

type Revenue struct {
	Total  float64        `json:"total"`
	Count  int            `json:"count"`
	Series []RevenuePoint `json:"series"`
}

// Summarize sums every sale and groups the totals by purchase date, oldest
// first.
func Summarize(sales []*Sale) Revenue {
	total := decimal.Zero
	byDate := make(map[time.Time]decimal.Decimal)
	counts := make(map[time.Time]int)
	for _, s := range sales {
		v := decimal.NewFromFloat(s.ValorTotal)
		total = total.Add(v)
		d := s.DataCompra.Time
		byDate[d] = byDate[d].Add(v)
		counts[d]++
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := Revenue{
		Total:  total.Round(2).InexactFloat64(),
		Count:  len(sales),
		Series: make([]RevenuePoint, 0, len(dates)),
	}
	for _, d := range dates {
		out.Series = append(out.Series, RevenuePoint{
			Date:  store.Date{Time: d},
			Total: byDate[d].Round(2).InexactFloat64(),
			Count: counts[d],
		})
	}
	return out
}
