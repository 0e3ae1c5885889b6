package mcpserver

import (
	"encoding/json"
	"strings"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

// splitIDs splits a comma-separated id list, dropping blanks.
func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
