package metrics

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Config scopes metric instruments to a service and environment.
type Config struct {
	ServiceName string
	Environment string
}

// FilterAttributes drops empty or sensitive attributes before recording.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(strings.TrimSpace(string(attr.Key)))
		if key == "" {
			continue
		}
		if strings.Contains(key, "token") || strings.Contains(key, "secret") || strings.Contains(key, "password") {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
