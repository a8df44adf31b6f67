package service

import (
	"time"

	"storefront/internal/store"
)

// Trend directions
const (
	TrendUp      = "up"
	TrendDown    = "down"
	TrendNeutral = "neutral"
)

// Trend compares a metric with the previous window
type Trend struct {
	Change    float64 `json:"change"`
	Direction string  `json:"direction"`
}

// ComputeTrend returns the percentage change from previous to current.
// A zero previous value yields a zero change, so growth from nothing is
// reported as neutral.
func ComputeTrend(current, previous int64) Trend {
	var change float64
	if previous > 0 {
		change = float64(current-previous) / float64(previous) * 100
	}

	direction := TrendNeutral
	switch {
	case change > 0:
		direction = TrendUp
	case change < 0:
		direction = TrendDown
	}
	return Trend{Change: change, Direction: direction}
}

// DailyRevenuePoint is one day of the dense order series
type DailyRevenuePoint struct {
	Date    string `json:"date"`
	Revenue int64  `json:"revenue"`
	Orders  int64  `json:"orders"`
}

// DailyUserPoint is one day of the dense registration series
type DailyUserPoint struct {
	Date     string `json:"date"`
	NewUsers int64  `json:"new_users"`
}

const dateLayout = "2006-01-02"

// seriesDays returns the last n UTC calendar days, oldest first, ending today
func seriesDays(now time.Time, n int) []time.Time {
	today := startOfDay(now)
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = today.AddDate(0, 0, i-n+1)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// denseRevenueSeries left-joins sparse rows onto the contiguous day list
func denseRevenueSeries(days []time.Time, rows []store.DailyOrderRow) []DailyRevenuePoint {
	byDay := make(map[string]store.DailyOrderRow, len(rows))
	for _, r := range rows {
		byDay[r.Day.UTC().Format(dateLayout)] = r
	}

	series := make([]DailyRevenuePoint, 0, len(days))
	for _, d := range days {
		key := d.Format(dateLayout)
		r := byDay[key]
		series = append(series, DailyRevenuePoint{Date: key, Revenue: r.Revenue, Orders: r.Orders})
	}
	return series
}

func denseUserSeries(days []time.Time, rows []store.DailyUserRow) []DailyUserPoint {
	byDay := make(map[string]int64, len(rows))
	for _, r := range rows {
		byDay[r.Day.UTC().Format(dateLayout)] = r.NewUsers
	}

	series := make([]DailyUserPoint, 0, len(days))
	for _, d := range days {
		key := d.Format(dateLayout)
		series = append(series, DailyUserPoint{Date: key, NewUsers: byDay[key]})
	}
	return series
}
