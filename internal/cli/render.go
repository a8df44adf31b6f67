package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"storefront/internal/adminclient"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	okText   = color.New(color.FgGreen).SprintFunc()
	failText = color.New(color.FgRed).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
)

// render prints v as indented JSON or calls table
func (a *app) render(v interface{}, table func()) error {
	if a.settings.Output == "json" {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	table()
	return nil
}

func (a *app) newTable(header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(a.out)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetBorder(false)
	return t
}

func (a *app) orderTable(orders []models.Order) {
	t := a.newTable("ID", "NUMBER", "CUSTOMER", "STATUS", "TOTAL", "CREATED")
	for _, o := range orders {
		t.Append([]string{
			strconv.FormatInt(o.ID, 10),
			o.OrderNumber,
			o.CustomerID,
			o.Status,
			formatAmount(o.TotalAmount),
			o.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	t.Render()
}

func (a *app) orderDetail(v *service.OrderView) {
	o := v.Order
	fmt.Fprintf(a.out, "Order %s (id %d)\n", o.OrderNumber, o.ID)
	fmt.Fprintf(a.out, "  status:   %s\n", o.Status)
	if v.Progress.Cancelled {
		fmt.Fprintf(a.out, "  progress: %s\n", failText("cancelled"))
	} else {
		fmt.Fprintf(a.out, "  progress: step %d of %d\n", v.Progress.Step+1, service.LastProgressStep+1)
	}
	fmt.Fprintf(a.out, "  customer: %s\n", o.CustomerID)
	fmt.Fprintf(a.out, "  total:    %s\n", formatAmount(o.TotalAmount))
	if v.Payment != nil {
		fmt.Fprintf(a.out, "  payment:  %s %s %s (%s)\n",
			v.Payment.Method, v.Payment.Status, formatAmount(v.Payment.Amount), v.Payment.ExternalReference)
	}
	if v.AmountDiscrepancy != 0 {
		fmt.Fprintf(a.out, "  %s\n", dimText(fmt.Sprintf("payment differs from order total by %s", formatAmount(v.AmountDiscrepancy))))
	}
	if v.LinkedOrders > 1 {
		fmt.Fprintf(a.out, "  %s\n", dimText(fmt.Sprintf("payment covers %d orders", v.LinkedOrders)))
	}

	t := a.newTable("PRODUCT ID", "SIZE", "QTY", "PRICE")
	for _, it := range v.Items {
		t.Append([]string{
			strconv.FormatInt(it.ProductID, 10),
			it.Size,
			strconv.Itoa(it.Quantity),
			formatAmount(it.PriceAtTime),
		})
	}
	t.Render()
}

func (a *app) bulkSummary(r *adminclient.BulkReport) {
	if len(r.Failures) == 0 {
		fmt.Fprintln(a.out, okText(r.Summary()))
	} else {
		fmt.Fprintln(a.out, failText(r.Summary()))
		for _, f := range r.Failures {
			fmt.Fprintf(a.out, "  order %d: %v\n", f.OrderID, f.Err)
		}
	}
	if r.RefreshErr != nil {
		fmt.Fprintf(a.out, "  %s\n", dimText("refresh failed: "+r.RefreshErr.Error()))
	}
}

func (a *app) analyticsView(s *service.AnalyticsSnapshot) {
	fmt.Fprintf(a.out, "Range %s (%s to %s)\n", s.Range,
		s.WindowStart.Format("2006-01-02"), s.WindowEnd.Format("2006-01-02"))
	fmt.Fprintf(a.out, "%s\n\n", dimText("generated "+s.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")))

	t := a.newTable("METRIC", "VALUE", "TREND")
	t.Append([]string{"Orders in range", strconv.FormatInt(s.PeriodOrders, 10), trendText(s.OrdersTrend)})
	t.Append([]string{"Revenue in range", formatAmount(s.PeriodRevenue), trendText(s.RevenueTrend)})
	t.Append([]string{"Lifetime orders", strconv.FormatInt(s.TotalOrders, 10), ""})
	t.Append([]string{"Lifetime revenue", formatAmount(s.TotalRevenue), ""})
	t.Append([]string{"Orders today", strconv.FormatInt(s.TodayOrders, 10), ""})
	t.Append([]string{"Awaiting confirmation", strconv.FormatInt(s.PendingOrders, 10), ""})
	t.Append([]string{"Average order value", formatAmount(s.AverageOrder), ""})
	t.Append([]string{"Conversion rate", fmt.Sprintf("%.1f%%", s.ConversionRate), ""})
	t.Append([]string{"Active products", strconv.FormatInt(s.TotalProducts, 10), ""})
	t.Append([]string{"Users", strconv.FormatInt(s.TotalUsers, 10), ""})
	t.Render()

	fmt.Fprintln(a.out)
	st := a.newTable("STATUS", "ORDERS", "SHARE")
	for _, row := range s.StatusBreakdown {
		st.Append([]string{row.Status, strconv.FormatInt(row.Count, 10), fmt.Sprintf("%.1f%%", row.Percentage)})
	}
	st.Render()

	if len(s.TopProducts) > 0 {
		fmt.Fprintln(a.out)
		tp := a.newTable("PRODUCT", "SOLD", "REVENUE")
		for _, p := range s.TopProducts {
			tp.Append([]string{p.Name, strconv.FormatInt(p.Sales, 10), formatAmount(p.Revenue)})
		}
		tp.Render()
	}
}

func trendText(t service.Trend) string {
	s := fmt.Sprintf("%+.1f%%", t.Change)
	switch t.Direction {
	case service.TrendUp:
		return okText(s)
	case service.TrendDown:
		return failText(s)
	default:
		return dimText(s)
	}
}

// formatAmount prints an integer amount with thousands separators
func formatAmount(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var out []byte
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
