package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	seriesLength     = 30
	topProductsLimit = 5
)

var rangeDurations = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}

// RangeDuration returns the window length for a range code
func RangeDuration(code string) (time.Duration, bool) {
	d, ok := rangeDurations[code]
	return d, ok
}

// StatusShare is one row of the in-window status breakdown
type StatusShare struct {
	Status     string  `json:"status"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TopProduct is one entry of the top-selling ranking
type TopProduct struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Sales     int64  `json:"sales"`
	Revenue   int64  `json:"revenue"`
}

// AnalyticsSnapshot is the full dashboard payload for one range
type AnalyticsSnapshot struct {
	Range          string    `json:"range"`
	GeneratedAt    time.Time `json:"generated_at"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	PreviousStart  time.Time `json:"previous_start"`
	TotalProducts  int64     `json:"total_products"`
	TotalUsers     int64     `json:"total_users"`
	TotalOrders    int64     `json:"total_orders"`
	TodayOrders    int64     `json:"today_orders"`
	PendingOrders  int64     `json:"pending_orders"`
	TotalRevenue   int64     `json:"total_revenue"`
	AverageOrder   int64     `json:"average_order_value"`
	ConversionRate float64   `json:"conversion_rate"`

	PeriodOrders    int64 `json:"period_orders"`
	PeriodRevenue   int64 `json:"period_revenue"`
	PreviousOrders  int64 `json:"previous_orders"`
	PreviousRevenue int64 `json:"previous_revenue"`
	OrdersTrend     Trend `json:"orders_trend"`
	RevenueTrend    Trend `json:"revenue_trend"`

	RevenueSeries   []DailyRevenuePoint `json:"revenue_series"`
	UserSeries      []DailyUserPoint    `json:"user_series"`
	StatusBreakdown []StatusShare       `json:"status_breakdown"`
	TopProducts     []TopProduct        `json:"top_products"`
}

// AnalyticsService computes read-side rollups over order history
type AnalyticsService struct {
	repo     AnalyticsRepository
	cache    SnapshotCache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewAnalyticsService creates a new analytics service. cache may be nil.
func NewAnalyticsService(repo AnalyticsRepository, cache SnapshotCache, cacheTTL time.Duration) *AnalyticsService {
	return &AnalyticsService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ComputeAnalytics runs every sub-aggregation for rangeCode concurrently and
// joins them into one snapshot. Any failed aggregation fails the snapshot.
func (s *AnalyticsService) ComputeAnalytics(ctx context.Context, rangeCode string) (*AnalyticsSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "AnalyticsService.ComputeAnalytics",
		attribute.String("range", rangeCode))
	defer span.End()

	window, ok := RangeDuration(rangeCode)
	if !ok {
		return nil, invalid("range", fmt.Sprintf("unsupported range %q", rangeCode))
	}

	cacheKey := "analytics:" + rangeCode
	if s.cache != nil && s.cacheTTL > 0 {
		var cached AnalyticsSnapshot
		err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		s.logger.Debug("Analytics cache miss", zap.String("range", rangeCode), zap.Error(err))
	}

	start := time.Now()
	defer func() {
		util.AnalyticsLatency.WithLabelValues(rangeCode).Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	windowStart := now.Add(-window)
	previousStart := windowStart.Add(-window)
	today := startOfDay(now)
	days := seriesDays(now, seriesLength)

	snap := &AnalyticsSnapshot{
		Range:         rangeCode,
		GeneratedAt:   now,
		WindowStart:   windowStart,
		WindowEnd:     now,
		PreviousStart: previousStart,
	}

	recognized := models.RevenueStatuses
	inWindow := store.OrderFilter{From: windowStart, To: now}
	inPrevious := store.OrderFilter{From: previousStart, To: windowStart}

	var (
		recognizedCount int64
		dailyOrders     []store.DailyOrderRow
		dailyUsers      []store.DailyUserRow
		statusRows      []store.StatusCountRow
		productRows     []store.ProductSalesRow
	)

	g, gctx := errgroup.WithContext(ctx)
	count := func(name string, dst *int64, fn func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			if err != nil {
				return fmt.Errorf("failed to compute %s: %w", name, err)
			}
			*dst = n
			return nil
		})
	}
	orders := func(f store.OrderFilter) func(context.Context) (int64, error) {
		return func(ctx context.Context) (int64, error) { return s.repo.CountOrders(ctx, f) }
	}
	revenue := func(f store.OrderFilter) func(context.Context) (int64, error) {
		f.Statuses = recognized
		return func(ctx context.Context) (int64, error) { return s.repo.SumOrderTotals(ctx, f) }
	}

	count("active products", &snap.TotalProducts, s.repo.CountActiveProducts)
	count("users", &snap.TotalUsers, s.repo.CountUsers)
	count("lifetime orders", &snap.TotalOrders, orders(store.OrderFilter{}))
	count("today orders", &snap.TodayOrders, orders(store.OrderFilter{From: today}))
	count("pending orders", &snap.PendingOrders, orders(store.OrderFilter{Statuses: []string{models.OrderStatusOrdered}}))
	count("lifetime revenue", &snap.TotalRevenue, revenue(store.OrderFilter{}))
	count("recognized orders", &recognizedCount, orders(store.OrderFilter{Statuses: recognized}))
	count("period orders", &snap.PeriodOrders, orders(inWindow))
	count("period revenue", &snap.PeriodRevenue, revenue(inWindow))
	count("previous orders", &snap.PreviousOrders, orders(inPrevious))
	count("previous revenue", &snap.PreviousRevenue, revenue(inPrevious))

	g.Go(func() error {
		rows, err := s.repo.DailyOrderTotals(gctx, days[0], recognized)
		if err != nil {
			return fmt.Errorf("failed to compute daily orders: %w", err)
		}
		dailyOrders = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.repo.NewUsersByDay(gctx, days[0])
		if err != nil {
			return fmt.Errorf("failed to compute daily users: %w", err)
		}
		dailyUsers = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.repo.CountOrdersByStatus(gctx, inWindow)
		if err != nil {
			return fmt.Errorf("failed to compute status breakdown: %w", err)
		}
		statusRows = rows
		return nil
	})
	g.Go(func() error {
		f := inWindow
		f.Statuses = recognized
		rows, err := s.repo.TopProducts(gctx, f, topProductsLimit)
		if err != nil {
			return fmt.Errorf("failed to compute top products: %w", err)
		}
		productRows = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		util.RecordError(span, err)
		s.logger.Error("Analytics computation failed", zap.String("range", rangeCode), zap.Error(err))
		return nil, err
	}

	if recognizedCount > 0 {
		snap.AverageOrder = int64(math.Round(float64(snap.TotalRevenue) / float64(recognizedCount)))
	}
	if snap.TotalUsers > 0 {
		snap.ConversionRate = float64(snap.TotalOrders) / float64(snap.TotalUsers) * 100
	}
	snap.OrdersTrend = ComputeTrend(snap.PeriodOrders, snap.PreviousOrders)
	snap.RevenueTrend = ComputeTrend(snap.PeriodRevenue, snap.PreviousRevenue)
	snap.RevenueSeries = denseRevenueSeries(days, dailyOrders)
	snap.UserSeries = denseUserSeries(days, dailyUsers)
	snap.StatusBreakdown = statusBreakdown(statusRows, snap.PeriodOrders)
	snap.TopProducts = topProducts(productRows)

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetJSON(ctx, cacheKey, snap, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to cache analytics snapshot", zap.String("range", rangeCode), zap.Error(err))
		}
	}
	return snap, nil
}

// statusBreakdown lists every status in fulfillment order. Percentages are
// relative to the in-window order count.
func statusBreakdown(rows []store.StatusCountRow, total int64) []StatusShare {
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	out := make([]StatusShare, 0, len(models.OrderStatuses))
	for _, status := range models.OrderStatuses {
		share := StatusShare{Status: status, Count: counts[status]}
		if total > 0 {
			share.Percentage = float64(share.Count) / float64(total) * 100
		}
		out = append(out, share)
	}
	return out
}

func topProducts(rows []store.ProductSalesRow) []TopProduct {
	out := make([]TopProduct, 0, len(rows))
	for _, r := range rows {
		out = append(out, TopProduct{
			ProductID: r.ProductID,
			Name:      r.Name,
			Sales:     r.Quantity,
			Revenue:   r.Revenue,
		})
	}
	return out
}
