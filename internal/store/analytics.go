package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// OrderFilter selects orders for aggregation. Zero values mean unbounded.
type OrderFilter struct {
	Statuses []string
	From     time.Time
	To       time.Time
}

// DailyOrderRow is one sparse row of the daily order series
type DailyOrderRow struct {
	Day     time.Time `db:"day"`
	Revenue int64     `db:"revenue"`
	Orders  int64     `db:"orders"`
}

// DailyUserRow is one sparse row of the daily new-user series
type DailyUserRow struct {
	Day      time.Time `db:"day"`
	NewUsers int64     `db:"new_users"`
}

// StatusCountRow counts orders in one status
type StatusCountRow struct {
	Status string `db:"status"`
	Count  int64  `db:"count"`
}

// ProductSalesRow is one ranked product
type ProductSalesRow struct {
	ProductID int64  `db:"product_id"`
	Name      string `db:"name"`
	Quantity  int64  `db:"quantity"`
	Revenue   int64  `db:"revenue"`
}

// CountActiveProducts counts products currently offered
func (s *Store) CountActiveProducts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM products WHERE active")
	return n, err
}

// CountUsers counts registered users
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users")
	return n, err
}

// NewUsersByDay returns sparse per-day registration counts since from
func (s *Store) NewUsersByDay(ctx context.Context, from time.Time) ([]DailyUserRow, error) {
	rows := []DailyUserRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT (created_at AT TIME ZONE 'UTC')::date AS day, COUNT(*) AS new_users
		FROM users
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day`, from)
	return rows, err
}

// CountOrders counts orders matching filter
func (s *Store) CountOrders(ctx context.Context, filter OrderFilter) (int64, error) {
	where, args := filter.where(1)
	var n int64
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM orders"+where, args...)
	return n, err
}

// SumOrderTotals sums total_amount over orders matching filter
func (s *Store) SumOrderTotals(ctx context.Context, filter OrderFilter) (int64, error) {
	where, args := filter.where(1)
	var n int64
	err := s.db.GetContext(ctx, &n, "SELECT COALESCE(SUM(total_amount), 0) FROM orders"+where, args...)
	return n, err
}

// DailyOrderTotals returns sparse per-day order counts and revenue since
// from. Only orders in revenueStatuses contribute revenue.
func (s *Store) DailyOrderTotals(ctx context.Context, from time.Time, revenueStatuses []string) ([]DailyOrderRow, error) {
	rows := []DailyOrderRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT (created_at AT TIME ZONE 'UTC')::date AS day,
		       COALESCE(SUM(total_amount) FILTER (WHERE status = ANY($2)), 0) AS revenue,
		       COUNT(*) AS orders
		FROM orders
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day`, from, pq.Array(revenueStatuses))
	return rows, err
}

// CountOrdersByStatus groups orders matching filter by status
func (s *Store) CountOrdersByStatus(ctx context.Context, filter OrderFilter) ([]StatusCountRow, error) {
	where, args := filter.where(1)
	rows := []StatusCountRow{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT status, COUNT(*) AS count FROM orders"+where+" GROUP BY status ORDER BY status", args...)
	return rows, err
}

// TopProducts ranks products by quantity sold across orders matching filter.
// Ties keep whatever order the database produces.
func (s *Store) TopProducts(ctx context.Context, filter OrderFilter, limit int) ([]ProductSalesRow, error) {
	where, args := filter.prefixed("o.").where(1)
	args = append(args, limit)
	rows := []ProductSalesRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT oi.product_id, COALESCE(p.name, '') AS name,
		       SUM(oi.quantity) AS quantity,
		       SUM(oi.quantity * oi.price_at_time) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN products p ON p.id = oi.product_id`+where+`
		GROUP BY oi.product_id, p.name
		ORDER BY quantity DESC
		LIMIT $`+strconv.Itoa(len(args)), args...)
	return rows, err
}

type prefixedFilter struct {
	OrderFilter
	prefix string
}

func (f OrderFilter) prefixed(prefix string) prefixedFilter {
	return prefixedFilter{OrderFilter: f, prefix: prefix}
}

func (f OrderFilter) where(start int) (string, []interface{}) {
	return f.prefixed("").where(start)
}

func (f prefixedFilter) where(start int) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(start+len(args)-1)
	}

	if len(f.Statuses) > 0 {
		clauses = append(clauses, f.prefix+"status = ANY("+next(pq.Array(f.Statuses))+")")
	}
	if !f.From.IsZero() {
		clauses = append(clauses, f.prefix+"created_at >= "+next(f.From))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, f.prefix+"created_at < "+next(f.To))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
