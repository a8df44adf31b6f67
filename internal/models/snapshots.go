package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// AddressSnapshot is a ShippingAddress stored as JSONB on the order row
type AddressSnapshot ShippingAddress

// Value implements driver.Valuer
func (a AddressSnapshot) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *AddressSnapshot) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// CheckoutSnapshot holds what a gateway checkout charged for. The deferred
// order is materialised from it once the gateway confirms the payment.
type CheckoutSnapshot struct {
	Lines           []PricedLine     `json:"lines,omitempty"`
	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty"`
	ShippingMethod  string           `json:"shipping_method,omitempty"`
	ShippingCost    int64            `json:"shipping_cost,omitempty"`
}

// Value implements driver.Valuer
func (c CheckoutSnapshot) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *CheckoutSnapshot) Scan(src interface{}) error {
	return scanJSON(src, c)
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
