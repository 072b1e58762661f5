// Package nodeconfig provides typed accessors over the free-form node
// config maps stored on automation definitions.
package nodeconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// String returns config[key] as a string, or "".
func String(config map[string]any, key string) string {
	if value, ok := config[key]; ok && value != nil {
		if s, ok := value.(string); ok {
			return s
		}

		return fmt.Sprint(value)
	}

	return ""
}

// StringDefault returns config[key] as a string, or fallback.
func StringDefault(config map[string]any, key, fallback string) string {
	if s := String(config, key); s != "" {
		return s
	}

	return fallback
}

// Bool returns config[key] as a boolean. Strings "true"/"1" count.
func Bool(config map[string]any, key string) bool {
	switch v := config[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

// Int returns config[key] as an int, or fallback. JSON numbers arrive as
// float64.
func Int(config map[string]any, key string, fallback int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}

	return fallback
}

// Map returns config[key] as a nested map, or nil.
func Map(config map[string]any, key string) map[string]any {
	if value, ok := config[key].(map[string]any); ok {
		return value
	}

	return nil
}

// List returns config[key] as a slice, or nil.
func List(config map[string]any, key string) []any {
	if value, ok := config[key].([]any); ok {
		return value
	}

	return nil
}

// Duration reads a {duration, unit} object under key. A bare number is
// taken as minutes. Returns fallback when absent or unparseable.
func Duration(config map[string]any, key string, fallback time.Duration) time.Duration {
	value, ok := config[key]
	if !ok || value == nil {
		return fallback
	}

	if obj, ok := value.(map[string]any); ok {
		amount := Int(obj, "duration", 0)
		if amount <= 0 {
			return fallback
		}

		return time.Duration(amount) * unitDuration(String(obj, "unit"))
	}

	if amount := Int(config, key, 0); amount > 0 {
		return time.Duration(amount) * time.Minute
	}

	return fallback
}

func unitDuration(unit string) time.Duration {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "second", "seconds", "s":
		return time.Second
	case "hour", "hours", "h":
		return time.Hour
	case "day", "days", "d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
