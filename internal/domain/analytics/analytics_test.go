package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Strob0t/linkshop/internal/domain/order"
)

var hk = time.FixedZone("HKT", 8*3600)

func mk(status order.Status, total string, at time.Time, items ...order.Item) order.Order {
	return order.Order{
		Status:    status,
		Amounts:   order.Amounts{Total: decimal.RequireFromString(total)},
		CreatedAt: at,
		Items:     items,
	}
}

func item(id string, qty int) order.Item {
	return order.Item{ProductID: id, Name: "name-" + id, Quantity: qty}
}

func TestDailyBuckets_CountsAllRevenueOnlyPaid(t *testing.T) {
	now := time.Date(2026, 4, 10, 15, 0, 0, 0, hk)
	day := time.Date(2026, 4, 9, 12, 0, 0, 0, hk)
	orders := []order.Order{
		mk(order.StatusAbandoned, "80", day),
		mk(order.StatusPaid, "100", day),
		mk(order.StatusPending, "50", day),
		mk(order.StatusCancelled, "30", day),
	}

	buckets := DailyBuckets(orders, hk, now, 7)
	if len(buckets) != 7 {
		t.Fatalf("len = %d, want 7", len(buckets))
	}
	if buckets[6].Date != "2026-04-10" || buckets[0].Date != "2026-04-04" {
		t.Fatalf("range = %s..%s", buckets[0].Date, buckets[6].Date)
	}
	b := buckets[5]
	if b.Date != "2026-04-09" {
		t.Fatalf("bucket date = %s", b.Date)
	}
	if b.Orders != 4 {
		t.Fatalf("orders = %d, want 4", b.Orders)
	}
	if !b.Revenue.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("revenue = %s, want 100", b.Revenue)
	}
	if buckets[6].Orders != 0 || !buckets[6].Revenue.IsZero() {
		t.Fatal("today should be zero-filled")
	}
}

func TestDailyBuckets_AbandonedAddsNoRevenue(t *testing.T) {
	now := time.Date(2026, 4, 10, 15, 0, 0, 0, hk)
	buckets := DailyBuckets([]order.Order{mk(order.StatusAbandoned, "999", now)}, hk, now, 1)
	if buckets[0].Orders != 1 || !buckets[0].Revenue.IsZero() {
		t.Fatalf("bucket = %+v", buckets[0])
	}
}

func TestDailyBuckets_UsesTenantWallClock(t *testing.T) {
	// 2026-04-09 17:30 UTC is 2026-04-10 01:30 in Hong Kong.
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, hk)
	o := mk(order.StatusPaid, "10", time.Date(2026, 4, 9, 17, 30, 0, 0, time.UTC))
	buckets := DailyBuckets([]order.Order{o}, hk, now, 2)
	if buckets[1].Date != "2026-04-10" || buckets[1].Orders != 1 {
		t.Fatalf("order landed in wrong bucket: %+v", buckets)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 4, 3, 12, 0, 0, 0, hk)
	orders := []order.Order{
		mk(order.StatusPaid, "10", time.Date(2026, 4, 3, 9, 0, 0, 0, hk)),       // today
		mk(order.StatusPending, "20", time.Date(2026, 4, 3, 10, 0, 0, 0, hk)),   // today
		mk(order.StatusShipped, "30", time.Date(2026, 4, 1, 9, 0, 0, 0, hk)),    // week + month
		mk(order.StatusCompleted, "40", time.Date(2026, 3, 28, 9, 0, 0, 0, hk)), // week only
		mk(order.StatusRefunded, "50", time.Date(2026, 3, 29, 9, 0, 0, 0, hk)),  // week only, no revenue
		mk(order.StatusPaid, "60", time.Date(2026, 3, 20, 9, 0, 0, 0, hk)),      // outside
	}
	s := Summarize(orders, hk, now)

	check := func(name string, p Period, n int, rev string) {
		t.Helper()
		if p.Orders != n || !p.Revenue.Equal(decimal.RequireFromString(rev)) {
			t.Errorf("%s = %d / %s, want %d / %s", name, p.Orders, p.Revenue, n, rev)
		}
	}
	check("today", s.Today, 2, "10")
	check("last7", s.Last7Days, 5, "80")
	check("mtd", s.MonthToDate, 3, "40")

	if got := SummaryWindowStart(hk, now); !got.Equal(time.Date(2026, 3, 28, 0, 0, 0, 0, hk)) {
		t.Errorf("window start = %v", got)
	}
}

func TestTopSellers(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-24 * time.Hour)
	orders := []order.Order{
		mk(order.StatusPaid, "1", recent, item("b", 5), item("a", 2)),
		mk(order.StatusCompleted, "1", recent, item("a", 3), item("c", 1)),
		mk(order.StatusShipped, "1", recent, item("d", 4)),
		mk(order.StatusPending, "1", recent, item("c", 50)),
		mk(order.StatusAbandoned, "1", recent, item("c", 50)),
		mk(order.StatusPaid, "1", now.Add(-31*24*time.Hour), item("c", 50)),
	}

	got := TopSellers(orders, now)
	want := []TopSeller{{ProductID: "a", Name: "name-a", Quantity: 5}, {ProductID: "b", Name: "name-b", Quantity: 5}, {ProductID: "d", Name: "name-d", Quantity: 4}}
	if len(got) != len(want) {
		t.Fatalf("got %d sellers, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rank %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTopSellers_Empty(t *testing.T) {
	if got := TopSellers(nil, time.Now()); len(got) != 0 {
		t.Fatalf("got %+v", got)
	}
}
