package service

import (
	"testing"
	"time"

	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name              string
		current, previous int64
		want              Trend
	}{
		{"growth", 150, 100, Trend{Change: 50, Direction: TrendUp}},
		{"decline", 50, 100, Trend{Change: -50, Direction: TrendDown}},
		{"flat", 100, 100, Trend{Change: 0, Direction: TrendNeutral}},
		{"from zero", 100, 0, Trend{Change: 0, Direction: TrendNeutral}},
		{"both zero", 0, 0, Trend{Change: 0, Direction: TrendNeutral}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTrend(tt.current, tt.previous))
		})
	}
}

func TestSeriesDays(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	days := seriesDays(now, 30)

	require.Len(t, days, 30)
	assert.Equal(t, "2026-01-31", days[0].Format(dateLayout))
	assert.Equal(t, "2026-03-01", days[29].Format(dateLayout))
}

func TestDenseRevenueSeriesFillsGaps(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	days := seriesDays(now, 30)
	rows := []store.DailyOrderRow{
		{Day: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), Revenue: 1000, Orders: 2},
		{Day: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), Revenue: 0, Orders: 1},
	}

	series := denseRevenueSeries(days, rows)
	require.Len(t, series, 30)
	assert.Equal(t, DailyRevenuePoint{Date: "2026-03-08", Revenue: 1000, Orders: 2}, series[27])
	assert.Equal(t, DailyRevenuePoint{Date: "2026-03-09", Revenue: 0, Orders: 0}, series[28])
	assert.Equal(t, DailyRevenuePoint{Date: "2026-03-10", Revenue: 0, Orders: 1}, series[29])
}

func TestDenseUserSeries(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	series := denseUserSeries(seriesDays(now, 30), []store.DailyUserRow{
		{Day: time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), NewUsers: 4},
	})

	require.Len(t, series, 30)
	assert.Equal(t, DailyUserPoint{Date: "2026-02-09", NewUsers: 4}, series[0])
	for _, p := range series[1:] {
		assert.Zero(t, p.NewUsers)
	}
}
