package commands

import "strings"

// requestBody builds the JSON-shaped body the validation layer expects,
// so CLI input is checked exactly like an HTTP request
func requestBody(tickers []string, from, to string, analysts []string) map[string]any {
	body := map[string]any{
		"tickers":    toAny(tickers),
		"start_date": from,
		"end_date":   to,
	}
	if len(analysts) > 0 {
		body["selected_analysts"] = toAny(analysts)
	}
	return body
}

func toAny(items []string) []any {
	out := make([]any, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
