package orders

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Flag is a boolean that also accepts the strings "true" and "false",
// which is how form clients send checkbox values.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = false
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = Flag(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Errorf("flag: expected bool or string, got %s", b)
	}
	*f = Flag(strings.EqualFold(strings.TrimSpace(s), "true"))
	return nil
}

// Date is a calendar date sent either as YYYY-MM-DD or as an RFC 3339 timestamp.
// Time of day is kept as sent; comparisons go through DayBounds.
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Errorf("date: expected string, got %s", b)
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.UTC().Format(time.RFC3339))
}

// ParseDate accepts RFC 3339 (with or without fractional seconds) or a bare date in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("date: cannot parse %q", s)
}

// SelectedItem is one product selection of an order edit form.
type SelectedItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
}

// Selection decodes either a JSON array of items or a string holding that array.
type Selection []SelectedItem

func (s *Selection) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		b = []byte(raw)
	}
	var items []SelectedItem
	if err := json.Unmarshal(b, &items); err != nil {
		return errors.Wrap(err, "orderItems")
	}
	*s = items
	return nil
}

func (s Selection) ProductIDs() []string {
	ids := make([]string, 0, len(s))
	for _, it := range s {
		ids = append(ids, it.ProductID)
	}
	return ids
}

func splitAddress(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// JoinAddress joins address components with ", ", dropping empty ones.
func JoinAddress(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, ", ")
}
