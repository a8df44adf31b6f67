package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/adminclient"
	"storefront/internal/api"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adminAPI is a minimal in-memory admin API
type adminAPI struct {
	mu     sync.Mutex
	orders map[int64]*models.Order
	fail   map[int64]bool
}

func newAdminAPI(n int) *adminAPI {
	a := &adminAPI{orders: map[int64]*models.Order{}, fail: map[int64]bool{}}
	for i := 1; i <= n; i++ {
		a.orders[int64(i)] = &models.Order{ID: int64(i), OrderNumber: "SF-20260301-00000" + strconv.Itoa(i), Status: models.OrderStatusOrdered, TotalAmount: 100000}
	}
	return a
}

func (a *adminAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	reply := func(code int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v)
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/")
	if path == "analytics" {
		reply(http.StatusOK, service.AnalyticsSnapshot{
			Range:        r.URL.Query().Get("range"),
			GeneratedAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			PeriodOrders: 12,
			OrdersTrend:  service.ComputeTrend(12, 10),
			StatusBreakdown: []service.StatusShare{
				{Status: models.OrderStatusOrdered, Count: 12, Percentage: 100},
			},
		})
		return
	}
	if path == "orders" {
		var list []models.Order
		for i := int64(1); i <= int64(len(a.orders))+5; i++ {
			if o, ok := a.orders[i]; ok {
				list = append(list, *o)
			}
		}
		reply(http.StatusOK, map[string]interface{}{"orders": list})
		return
	}

	parts := strings.Split(strings.TrimPrefix(path, "orders/"), "/")
	id, _ := strconv.ParseInt(parts[0], 10, 64)
	o, ok := a.orders[id]
	if !ok {
		reply(http.StatusNotFound, map[string]string{"error": "Order not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		reply(http.StatusOK, service.OrderView{Order: o, Progress: service.ProjectProgress(o.Status, "")})
	case http.MethodDelete:
		delete(a.orders, id)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPut:
		if a.fail[id] {
			reply(http.StatusInternalServerError, map[string]string{"error": "Failed to update order status"})
			return
		}
		var body struct{ Status string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		o.Status = body.Status
		reply(http.StatusOK, o)
	}
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(&out, srv.Client())
	cmd.SetArgs(append([]string{"--server", srv.URL, "--token", "tok"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadSettingsPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "storefrontctl.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server: http://from-file\ntoken: file-token\ntimeout: 3s\n"), 0o600))

	s, err := LoadSettings(file, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file", s.Server)
	assert.Equal(t, 3*time.Second, s.Timeout)
	assert.Equal(t, "table", s.Output)

	t.Setenv("STOREFRONT_TOKEN", "env-token")
	s, err = LoadSettings(file, nil)
	require.NoError(t, err)
	assert.Equal(t, "env-token", s.Token)
}

func TestLoadSettingsRejectsUnknownOutput(t *testing.T) {
	t.Setenv("STOREFRONT_OUTPUT", "yaml")
	_, err := LoadSettings("", nil)
	assert.Error(t, err)
}

func TestOrdersList(t *testing.T) {
	srv := httptest.NewServer(newAdminAPI(2))
	defer srv.Close()

	out, err := run(t, srv, "orders", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "SF-20260301-000001")
	assert.Contains(t, out, "100,000")
}

func TestOrdersSetStatus(t *testing.T) {
	srv := httptest.NewServer(newAdminAPI(1))
	defer srv.Close()

	out, err := run(t, srv, "orders", "set-status", "1", "shipped")
	require.NoError(t, err)
	assert.Contains(t, out, "order 1: ORDERED -> SHIPPED")

	_, err = run(t, srv, "orders", "set-status", "1", "LOST")
	assert.Error(t, err)
}

func TestOrdersBulkStatus(t *testing.T) {
	a := newAdminAPI(4)
	a.fail[3] = true
	srv := httptest.NewServer(a)
	defer srv.Close()

	out, err := run(t, srv, "-o", "json", "orders", "bulk-status", "CONFIRMED", "1", "2", "3", "4", "9")
	require.NoError(t, err)

	var report adminclient.BulkReport
	var raw struct {
		Total        int `json:"total"`
		SuccessCount int `json:"success_count"`
		Failures     []struct {
			OrderID int64  `json:"order_id"`
			Error   string `json:"error"`
		} `json:"failures"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	report.Total, report.SuccessCount = raw.Total, raw.SuccessCount
	assert.Equal(t, "3 of 5 updated", report.Summary())
	require.Len(t, raw.Failures, 2)
	assert.ElementsMatch(t, []int64{3, 9}, []int64{raw.Failures[0].OrderID, raw.Failures[1].OrderID})
	assert.Equal(t, models.OrderStatusOrdered, a.orders[3].Status)
}

func TestAnalytics(t *testing.T) {
	srv := httptest.NewServer(newAdminAPI(0))
	defer srv.Close()

	out, err := run(t, srv, "analytics", "--range", "7d")
	require.NoError(t, err)
	assert.Contains(t, out, "Range 7d")
	assert.Contains(t, out, "+20.0%")
	assert.Contains(t, out, "generated 2026-03-14 09:30:00 UTC")

	_, err = run(t, srv, "analytics", "--range", "2w")
	assert.Error(t, err)
}

func TestOrdersShowProgress(t *testing.T) {
	backend := newAdminAPI(2)
	backend.orders[2].Status = models.OrderStatusDelivered
	srv := httptest.NewServer(backend)
	defer srv.Close()

	out, err := run(t, srv, "orders", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "step 1 of 5")

	out, err = run(t, srv, "orders", "show", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "step 5 of 5")
}

func TestTokenIsAcceptedByServer(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand(&out, nil)
	cmd.SetArgs([]string{"token", "--sub", "ops-1", "--secret", "s3cret"})
	require.NoError(t, cmd.Execute())

	p, err := api.ParseToken("s3cret", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops-1", p.ID)
	assert.True(t, p.IsAdmin())
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", formatAmount(0))
	assert.Equal(t, "999", formatAmount(999))
	assert.Equal(t, "130,000", formatAmount(130000))
	assert.Equal(t, "-1,250,000", formatAmount(-1250000))
}
