package platform

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"social-pulse/internal/domain"
)

// FirstPresent возвращает значение первого присутствующего поля из keys.
// Ключ может быть путём через точку ("from.name"). nil и пустые строки
// считаются отсутствующими.
func FirstPresent(record domain.Record, keys []string, def any) any {
	for _, key := range keys {
		if v, ok := lookup(record, key); ok && present(v) {
			return v
		}
	}
	return def
}

func lookup(record domain.Record, path string) (any, bool) {
	if record == nil {
		return nil, false
	}
	if v, ok := record[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}
	var cur any = record
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	}
	return true
}

func firstString(record domain.Record, keys ...string) string {
	for _, key := range keys {
		v, ok := lookup(record, key)
		if !ok {
			continue
		}
		if s := toString(v); s != "" {
			return s
		}
	}
	return ""
}

func firstInt(record domain.Record, keys ...string) int {
	return toInt(FirstPresent(record, keys, 0))
}

func firstTime(record domain.Record, keys ...string) time.Time {
	for _, key := range keys {
		v, ok := lookup(record, key)
		if !ok {
			continue
		}
		if t := parseTime(v); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	}
	return ""
}

func toInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return int(f)
	case string:
		return parseCount(t)
	case []any:
		return len(t)
	}
	return 0
}

// parseCount разбирает счётчики вида "1,234", "1.2K", "3M".
func parseCount(raw string) int {
	fields := strings.Fields(strings.ReplaceAll(raw, ",", ""))
	if len(fields) == 0 {
		return 0
	}
	s := strings.ToUpper(fields[0])
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1e3, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1e6, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "B"):
		mult, s = 1e9, strings.TrimSuffix(s, "B")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(math.Round(f * mult))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// parseTime приводит время из записи актора к UTC. Числа трактуются как
// unix-секунды, а значения от 1e12 — как миллисекунды.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case float64:
		return fromUnix(t)
	case int:
		return fromUnix(float64(t))
	case int64:
		return fromUnix(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}
		}
		return fromUnix(f)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromUnix(f)
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}

func fromUnix(f float64) time.Time {
	if f <= 0 {
		return time.Time{}
	}
	if f >= 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func pickExtra(record domain.Record, keys ...string) map[string]any {
	extra := make(map[string]any)
	for _, key := range keys {
		if v, ok := lookup(record, key); ok && present(v) {
			extra[key] = v
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
