// Package stats derives dashboard figures from store snapshots.
//
// Every function is pure. Values that are nil, missing or empty text are
// excluded from groups, buckets and sums rather than collected under an
// "unknown" key.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spec-kit/intranet/internal/domain"
)

// DateUnit selects the bucket granularity of BucketByDateUnit.
type DateUnit string

const (
	UnitYear  DateUnit = "year"
	UnitMonth DateUnit = "month"
	UnitDay   DateUnit = "day"
)

var unitLayouts = map[DateUnit]string{
	UnitYear:  "2006",
	UnitMonth: "2006-01",
	UnitDay:   "2006-01-02",
}

// ParseUnit validates a textual unit.
func ParseUnit(s string) (DateUnit, error) {
	unit := DateUnit(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := unitLayouts[unit]; !ok {
		return "", fmt.Errorf("unknown date unit %q (want year, month or day)", s)
	}
	return unit, nil
}

// GroupByField counts items per distinct value of field.
func GroupByField(items []domain.Resource, field string) map[string]int {
	out := map[string]int{}
	for _, item := range items {
		key, ok := keyOf(item, field)
		if !ok {
			continue
		}
		out[key]++
	}
	return out
}

// SumByField adds the numeric values of field. Non-numeric values are skipped.
func SumByField(items []domain.Resource, field string) float64 {
	var total float64
	for _, item := range items {
		v, ok := item.Value(field)
		if !ok {
			continue
		}
		if n, ok := number(v); ok {
			total += n
		}
	}
	return total
}

// BucketByDateUnit counts items per calendar year, month or day of a date field.
func BucketByDateUnit(items []domain.Resource, field string, unit DateUnit) map[string]int {
	out := map[string]int{}
	layout, ok := unitLayouts[unit]
	if !ok {
		return out
	}
	for _, item := range items {
		v, ok := item.Value(field)
		if !ok {
			continue
		}
		t, ok := domain.ParseTime(v)
		if !ok {
			continue
		}
		out[t.Format(layout)]++
	}
	return out
}

// CountWhere counts items whose field renders to value.
func CountWhere(items []domain.Resource, field, value string) int {
	n := 0
	for _, item := range items {
		if key, ok := keyOf(item, field); ok && key == value {
			n++
		}
	}
	return n
}

// SortedKeys returns the keys of a count map in ascending order.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func keyOf(item domain.Resource, field string) (string, bool) {
	v, ok := item.Value(field)
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return "", false
		}
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	}
	if n, ok := domain.AsNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return fmt.Sprint(v), true
}

// number accepts finite JSON numbers and numeric text such as "1200000".
func number(v any) (float64, bool) {
	n, ok := domain.AsNumber(v)
	if !ok {
		s, isText := v.(string)
		if !isText {
			return 0, false
		}
		var err error
		n, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		ok = err == nil
	}
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
