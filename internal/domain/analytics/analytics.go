// Package analytics aggregates orders into daily buckets, summaries and
// top-seller rankings. All functions are pure; callers fetch the orders.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Strob0t/linkshop/internal/domain/order"
)

const (
	// DayLayout is the date format of bucket keys.
	DayLayout = "2006-01-02"

	TopSellerWindow = 30 * 24 * time.Hour
	TopSellerLimit  = 3
	DefaultDays     = 30
	MaxDays         = 90
)

// Bucket is one calendar day of order activity.
type Bucket struct {
	Date    string          `json:"date"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

func (b *Bucket) add(o *order.Order) {
	b.Orders++
	if o.Status.IsPaidEquivalent() {
		b.Revenue = b.Revenue.Add(o.Amounts.Total)
	}
}

// DayStart returns local midnight of the day containing t in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// DailyBuckets returns one zero-filled bucket per calendar day in loc for
// the days days ending with the day containing now, oldest first. Orders
// outside the range are ignored. Every order counts; only paid-equivalent
// orders add revenue.
func DailyBuckets(orders []order.Order, loc *time.Location, now time.Time, days int) []Bucket {
	if days < 1 {
		days = 1
	}
	today := DayStart(now, loc)
	first := today.AddDate(0, 0, -(days - 1))

	buckets := make([]Bucket, days)
	index := make(map[string]int, days)
	for i := range buckets {
		key := first.AddDate(0, 0, i).Format(DayLayout)
		buckets[i] = Bucket{Date: key, Revenue: decimal.Zero}
		index[key] = i
	}
	for i := range orders {
		key := orders[i].CreatedAt.In(loc).Format(DayLayout)
		if j, ok := index[key]; ok {
			buckets[j].add(&orders[i])
		}
	}
	return buckets
}

// Period is an order count and revenue over a range.
type Period struct {
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Summary holds the dashboard totals.
type Summary struct {
	Today       Period `json:"today"`
	Last7Days   Period `json:"last_7_days"`
	MonthToDate Period `json:"month_to_date"`
}

// SummaryWindowStart returns the earliest instant Summarize looks at, so a
// caller can bound its fetch.
func SummaryWindowStart(loc *time.Location, now time.Time) time.Time {
	today := DayStart(now, loc)
	week := today.AddDate(0, 0, -6)
	month := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
	if week.Before(month) {
		return week
	}
	return month
}

// Summarize computes today, the last 7 calendar days including today and the
// calendar month to date, all in loc.
func Summarize(orders []order.Order, loc *time.Location, now time.Time) Summary {
	today := DayStart(now, loc)
	week := today.AddDate(0, 0, -6)
	month := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)

	s := Summary{
		Today:       Period{Revenue: decimal.Zero},
		Last7Days:   Period{Revenue: decimal.Zero},
		MonthToDate: Period{Revenue: decimal.Zero},
	}
	for i := range orders {
		o := &orders[i]
		if o.CreatedAt.After(now) {
			continue
		}
		if !o.CreatedAt.Before(today) {
			s.Today.add(o)
		}
		if !o.CreatedAt.Before(week) {
			s.Last7Days.add(o)
		}
		if !o.CreatedAt.Before(month) {
			s.MonthToDate.add(o)
		}
	}
	return s
}

func (p *Period) add(o *order.Order) {
	p.Orders++
	if o.Status.IsPaidEquivalent() {
		p.Revenue = p.Revenue.Add(o.Amounts.Total)
	}
}

// TopSeller is one ranked product.
type TopSeller struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// TopSellers sums item quantities of paid-equivalent orders created within
// the trailing 30 days before now, sorted by quantity descending with ties
// broken by product ID, truncated to the top 3.
func TopSellers(orders []order.Order, now time.Time) []TopSeller {
	since := now.Add(-TopSellerWindow)
	totals := make(map[string]*TopSeller)
	for i := range orders {
		o := &orders[i]
		if !o.Status.IsPaidEquivalent() || o.CreatedAt.Before(since) || o.CreatedAt.After(now) {
			continue
		}
		for _, it := range o.Items {
			ts, ok := totals[it.ProductID]
			if !ok {
				ts = &TopSeller{ProductID: it.ProductID, Name: it.Name}
				totals[it.ProductID] = ts
			}
			ts.Quantity += it.Quantity
		}
	}

	out := make([]TopSeller, 0, len(totals))
	for _, ts := range totals {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > TopSellerLimit {
		out = out[:TopSellerLimit]
	}
	return out
}
