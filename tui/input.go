package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	nt "sieve/entity"
)

// ParseInput turns typed text into a filter value.
//
//	""                  nil, clearing the filter
//	"[a, b]" or "a, b"  a list
//	"k=v; k2=[a, b]"    named bindings
//	"true", "3.5"       bool and number, anything else a string
func ParseInput(text string) any {

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.Contains(text, "=") {
		bound := map[string]any{}
		for _, part := range strings.Split(text, ";") {
			key, val, ok := strings.Cut(part, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				continue
			}
			bound[key] = ParseInput(val)
		}
		return bound
	}

	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		return parseList(text[1 : len(text)-1])
	}
	if strings.Contains(text, ",") {
		return parseList(text)
	}

	return parseScalar(text)
}

// FormatInput renders a filter value as ParseInput would accept it.
func FormatInput(val any) string {

	switch vv := val.(type) {
	case nil:
		return ""
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for key := range vv {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = fmt.Sprintf("%s=%s", key, FormatInput(vv[key]))
		}
		return strings.Join(parts, "; ")
	}

	value := nt.ValueOf(val)
	items, err := value.List()
	if err != nil {
		return value.String()
	}

	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func parseList(text string) []any {

	items := []any{}
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		items = append(items, parseScalar(part))
	}
	return items
}

func parseScalar(text string) any {

	switch text {
	case "true":
		return true
	case "false":
		return false
	}

	num, err := strconv.ParseFloat(text, 64)
	if err == nil {
		return num
	}
	return text
}
