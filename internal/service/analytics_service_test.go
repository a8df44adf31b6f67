package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seededOrder struct {
	status    string
	total     int64
	createdAt time.Time
	lines     []models.OrderItem
}

// memAnalytics evaluates store.OrderFilter over seeded orders
type memAnalytics struct {
	products int64
	users    []time.Time
	orders   []seededOrder
	names    map[int64]string
	failOn   string
}

func (m *memAnalytics) match(o seededOrder, f store.OrderFilter) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			ok = ok || s == o.status
		}
		if !ok {
			return false
		}
	}
	if !f.From.IsZero() && o.createdAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.createdAt.Before(f.To) {
		return false
	}
	return true
}

func (m *memAnalytics) fail(name string) error {
	if m.failOn == name {
		return errors.New("connection refused")
	}
	return nil
}

func (m *memAnalytics) CountActiveProducts(context.Context) (int64, error) {
	return m.products, m.fail("products")
}

func (m *memAnalytics) CountUsers(context.Context) (int64, error) {
	return int64(len(m.users)), m.fail("users")
}

func (m *memAnalytics) NewUsersByDay(_ context.Context, from time.Time) ([]store.DailyUserRow, error) {
	counts := map[time.Time]int64{}
	for _, u := range m.users {
		if !u.Before(from) {
			counts[startOfDay(u)]++
		}
	}
	var rows []store.DailyUserRow
	for d, n := range counts {
		rows = append(rows, store.DailyUserRow{Day: d, NewUsers: n})
	}
	return rows, m.fail("daily users")
}

func (m *memAnalytics) CountOrders(_ context.Context, f store.OrderFilter) (int64, error) {
	var n int64
	for _, o := range m.orders {
		if m.match(o, f) {
			n++
		}
	}
	return n, m.fail("count")
}

func (m *memAnalytics) SumOrderTotals(_ context.Context, f store.OrderFilter) (int64, error) {
	var n int64
	for _, o := range m.orders {
		if m.match(o, f) {
			n += o.total
		}
	}
	return n, m.fail("sum")
}

func (m *memAnalytics) DailyOrderTotals(_ context.Context, from time.Time, revenueStatuses []string) ([]store.DailyOrderRow, error) {
	byDay := map[time.Time]*store.DailyOrderRow{}
	for _, o := range m.orders {
		if o.createdAt.Before(from) {
			continue
		}
		d := startOfDay(o.createdAt)
		if byDay[d] == nil {
			byDay[d] = &store.DailyOrderRow{Day: d}
		}
		byDay[d].Orders++
		if m.match(o, store.OrderFilter{Statuses: revenueStatuses}) {
			byDay[d].Revenue += o.total
		}
	}
	var rows []store.DailyOrderRow
	for _, r := range byDay {
		rows = append(rows, *r)
	}
	return rows, m.fail("daily orders")
}

func (m *memAnalytics) CountOrdersByStatus(_ context.Context, f store.OrderFilter) ([]store.StatusCountRow, error) {
	counts := map[string]int64{}
	for _, o := range m.orders {
		if m.match(o, f) {
			counts[o.status]++
		}
	}
	var rows []store.StatusCountRow
	for s, n := range counts {
		rows = append(rows, store.StatusCountRow{Status: s, Count: n})
	}
	return rows, m.fail("status")
}

func (m *memAnalytics) TopProducts(_ context.Context, f store.OrderFilter, limit int) ([]store.ProductSalesRow, error) {
	agg := map[int64]*store.ProductSalesRow{}
	var order []int64
	for _, o := range m.orders {
		if !m.match(o, f) {
			continue
		}
		for _, it := range o.lines {
			if agg[it.ProductID] == nil {
				agg[it.ProductID] = &store.ProductSalesRow{ProductID: it.ProductID, Name: m.names[it.ProductID]}
				order = append(order, it.ProductID)
			}
			agg[it.ProductID].Quantity += int64(it.Quantity)
			agg[it.ProductID].Revenue += int64(it.Quantity) * it.PriceAtTime
		}
	}
	var rows []store.ProductSalesRow
	for _, id := range order {
		rows = append(rows, *agg[id])
	}
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].Quantity > rows[j-1].Quantity; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, m.fail("top")
}

type memCache struct {
	mu   sync.Mutex
	sets int
	data map[string]AnalyticsSnapshot
}

func (c *memCache) GetJSON(_ context.Context, key string, dst interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return errors.New("miss")
	}
	*dst.(*AnalyticsSnapshot) = v
	return nil
}

func (c *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]AnalyticsSnapshot{}
	}
	c.sets++
	c.data[key] = *value.(*AnalyticsSnapshot)
	return nil
}

var analyticsNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return analyticsNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func seededAnalytics() *memAnalytics {
	return &memAnalytics{
		products: 12,
		users:    []time.Time{daysAgo(40), daysAgo(3), daysAgo(3), daysAgo(0)},
		names:    map[int64]string{1: "Shirt", 2: "Tote", 3: "Cap"},
		orders: []seededOrder{
			{status: models.OrderStatusDelivered, total: 100000, createdAt: daysAgo(2),
				lines: []models.OrderItem{{ProductID: 1, Quantity: 2, PriceAtTime: 50000}}},
			{status: models.OrderStatusShipped, total: 60000, createdAt: daysAgo(5),
				lines: []models.OrderItem{{ProductID: 2, Quantity: 2, PriceAtTime: 30000}, {ProductID: 1, Quantity: 1, PriceAtTime: 0}}},
			{status: models.OrderStatusOrdered, total: 999000, createdAt: daysAgo(1),
				lines: []models.OrderItem{{ProductID: 3, Quantity: 50, PriceAtTime: 19980}}},
			{status: models.OrderStatusCancelled, total: 5000, createdAt: analyticsNow.Add(-time.Hour)},
			{status: models.OrderStatusDelivered, total: 40000, createdAt: daysAgo(10)},
		},
	}
}

func newTestAnalytics(repo AnalyticsRepository, cache SnapshotCache) *AnalyticsService {
	svc := NewAnalyticsService(repo, cache, time.Minute)
	svc.now = func() time.Time { return analyticsNow }
	return svc
}

func TestComputeAnalytics(t *testing.T) {
	svc := newTestAnalytics(seededAnalytics(), nil)

	snap, err := svc.ComputeAnalytics(context.Background(), "7d")
	require.NoError(t, err)

	assert.Equal(t, int64(12), snap.TotalProducts)
	assert.Equal(t, int64(4), snap.TotalUsers)
	assert.Equal(t, int64(5), snap.TotalOrders)
	assert.Equal(t, int64(1), snap.TodayOrders)
	assert.Equal(t, int64(1), snap.PendingOrders)

	// only SHIPPED/DELIVERED count, the 999000 ORDERED order does not
	assert.Equal(t, int64(200000), snap.TotalRevenue)
	assert.Equal(t, int64(66667), snap.AverageOrder)
	assert.Equal(t, int64(4), snap.PeriodOrders)
	assert.Equal(t, int64(160000), snap.PeriodRevenue)
	assert.Equal(t, int64(1), snap.PreviousOrders)
	assert.Equal(t, int64(40000), snap.PreviousRevenue)
	assert.Equal(t, Trend{Change: 300, Direction: TrendUp}, snap.OrdersTrend)
	assert.Equal(t, Trend{Change: 300, Direction: TrendUp}, snap.RevenueTrend)
	assert.InDelta(t, 125.0, snap.ConversionRate, 0.0001)

	require.Len(t, snap.RevenueSeries, 30)
	assert.Equal(t, "2026-03-31", snap.RevenueSeries[29].Date)
	assert.Equal(t, DailyRevenuePoint{Date: "2026-03-30", Revenue: 0, Orders: 1}, snap.RevenueSeries[28])
	assert.Equal(t, DailyRevenuePoint{Date: "2026-03-29", Revenue: 100000, Orders: 1}, snap.RevenueSeries[27])
	assert.Equal(t, DailyRevenuePoint{Date: "2026-03-27", Revenue: 0, Orders: 0}, snap.RevenueSeries[25])

	require.Len(t, snap.UserSeries, 30)
	assert.Equal(t, int64(2), snap.UserSeries[26].NewUsers)
	assert.Equal(t, int64(1), snap.UserSeries[29].NewUsers)

	require.Len(t, snap.StatusBreakdown, len(models.OrderStatuses))
	shares := map[string]StatusShare{}
	for _, s := range snap.StatusBreakdown {
		shares[s.Status] = s
	}
	assert.Equal(t, int64(1), shares[models.OrderStatusOrdered].Count)
	assert.InDelta(t, 25.0, shares[models.OrderStatusOrdered].Percentage, 0.0001)
	assert.Zero(t, shares[models.OrderStatusProcessing].Count)

	require.Len(t, snap.TopProducts, 2)
	assert.Equal(t, TopProduct{ProductID: 1, Name: "Shirt", Sales: 3, Revenue: 100000}, snap.TopProducts[0])
	assert.Equal(t, TopProduct{ProductID: 2, Name: "Tote", Sales: 2, Revenue: 60000}, snap.TopProducts[1])
}

func TestComputeAnalyticsWindows(t *testing.T) {
	svc := newTestAnalytics(seededAnalytics(), nil)

	snap, err := svc.ComputeAnalytics(context.Background(), "30d")
	require.NoError(t, err)

	assert.Equal(t, analyticsNow.Add(-30*24*time.Hour), snap.WindowStart)
	assert.Equal(t, analyticsNow.Add(-60*24*time.Hour), snap.PreviousStart)
	assert.Equal(t, int64(5), snap.PeriodOrders)
	assert.Zero(t, snap.PreviousOrders)
	assert.Equal(t, Trend{Change: 0, Direction: TrendNeutral}, snap.OrdersTrend)
}

func TestComputeAnalyticsRejectsUnknownRange(t *testing.T) {
	svc := newTestAnalytics(seededAnalytics(), nil)

	_, err := svc.ComputeAnalytics(context.Background(), "2w")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestComputeAnalyticsFailsWhole(t *testing.T) {
	repo := seededAnalytics()
	repo.failOn = "top"
	cache := &memCache{}
	svc := newTestAnalytics(repo, cache)

	snap, err := svc.ComputeAnalytics(context.Background(), "7d")
	assert.Error(t, err)
	assert.Nil(t, snap)
	assert.Zero(t, cache.sets)
}

func TestComputeAnalyticsUsesCache(t *testing.T) {
	repo := seededAnalytics()
	cache := &memCache{}
	svc := newTestAnalytics(repo, cache)
	ctx := context.Background()

	first, err := svc.ComputeAnalytics(ctx, "7d")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	repo.orders = nil
	second, err := svc.ComputeAnalytics(ctx, "7d")
	require.NoError(t, err)
	assert.Equal(t, first.TotalOrders, second.TotalOrders)
	assert.Equal(t, 1, cache.sets)
}

func TestComputeAnalyticsEmptyStore(t *testing.T) {
	svc := newTestAnalytics(&memAnalytics{}, nil)

	snap, err := svc.ComputeAnalytics(context.Background(), "1y")
	require.NoError(t, err)
	assert.Zero(t, snap.ConversionRate)
	assert.Zero(t, snap.AverageOrder)
	assert.Len(t, snap.RevenueSeries, 30)
	assert.Empty(t, snap.TopProducts)
	for _, s := range snap.StatusBreakdown {
		assert.Zero(t, s.Percentage)
	}
}
