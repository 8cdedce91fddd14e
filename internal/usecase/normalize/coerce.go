package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// truthy coerces 1, "1", "true", true to true and 0, "0", "false", false to
// false. Anything else reports ok=false.
func truthy(v any) (value, ok bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int:
		return boolFromInt(int64(x))
	case int64:
		return boolFromInt(x)
	case float64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true":
			return true, true
		case "0", "false":
			return false, true
		}
	}
	return false, false
}

func boolFromInt(n int64) (bool, bool) {
	if n == 0 || n == 1 {
		return n == 1, true
	}
	return false, false
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %v", v)
	}
	return int(f), nil
}

func toString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}

// toList accepts a list or a comma-separated string and drops blanks.
func toList(v any) ([]string, error) {
	var raw []string
	switch x := v.(type) {
	case []string:
		raw = x
	case []any:
		for _, e := range x {
			s, ok := toString(e)
			if !ok {
				return nil, fmt.Errorf("unsupported list element %v", e)
			}
			raw = append(raw, s)
		}
	case map[string]any:
		// filter[chores][0]=a&filter[chores][1]=b
		for _, e := range x {
			s, ok := toString(e)
			if !ok {
				return nil, fmt.Errorf("unsupported list element %v", e)
			}
			raw = append(raw, s)
		}
	default:
		s, ok := toString(v)
		if !ok {
			return nil, fmt.Errorf("not a list: %v", v)
		}
		raw = strings.Split(s, ",")
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// toTime accepts unix seconds, RFC 3339 or a plain date.
func toTime(v any) (time.Time, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			return t, nil
		}
	}
	n, err := toInt(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a timestamp: %v", v)
	}
	return time.Unix(int64(n), 0).UTC(), nil
}
